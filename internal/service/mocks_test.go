package service

import (
	"context"
	"errors"
	"sync"

	"github.com/fossabot/failmap/internal/scanner"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
)

// submission is one call to mockSubmitter.Submit.
type submission struct {
	TaskType string
	Payload  any
}

// mockSubmitter records submitted tasks instead of enqueueing them.
type mockSubmitter struct {
	mu          sync.Mutex
	submissions []submission
	tasks       map[uuid.UUID]*task.Task
	failAfter   int
}

func newMockSubmitter() *mockSubmitter {
	return &mockSubmitter{tasks: make(map[uuid.UUID]*task.Task), failAfter: -1}
}

var errBrokerDown = errors.New("broker down")

func (m *mockSubmitter) Submit(_ context.Context, taskType string, payload any) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && len(m.submissions) >= m.failAfter {
		return uuid.Nil, errBrokerDown
	}
	m.submissions = append(m.submissions, submission{TaskType: taskType, Payload: payload})
	t := task.NewTask(taskType, nil)
	m.tasks[t.ID] = t
	return t.ID, nil
}

func (m *mockSubmitter) Status(_ context.Context, id uuid.UUID) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

func (m *mockSubmitter) filters() []scanner.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scanner.Filter, len(m.submissions))
	for i, s := range m.submissions {
		out[i], _ = s.Payload.(scanner.Filter)
	}
	return out
}
