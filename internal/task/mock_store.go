package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fossabot/failmap/internal/store"
	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface in memory for testing
type MockTaskStore struct {
	mutex          sync.RWMutex
	tasks          map[uuid.UUID]*Task
	SaveFn         func(ctx context.Context, task *Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
	ClaimFn        func(ctx context.Context, taskID uuid.UUID) (bool, error)
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	s := &MockTaskStore{tasks: make(map[uuid.UUID]*Task)}

	s.SaveFn = func(ctx context.Context, task *Task) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		cp := *task
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now().UTC()
		}
		s.tasks[task.ID] = &cp
		return nil
	}

	s.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		t, ok := s.tasks[taskID]
		if !ok {
			return store.ErrTaskNotFound
		}
		t.Status = status
		t.ErrorMessage = errorMsg
		t.UpdatedAt = time.Now().UTC()
		return nil
	}

	s.ClaimFn = func(ctx context.Context, taskID uuid.UUID) (bool, error) {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		t, ok := s.tasks[taskID]
		if !ok || t.Status != TaskStatusPending {
			return false, nil
		}
		t.Status = TaskStatusProcessing
		t.UpdatedAt = time.Now().UTC()
		return true, nil
	}

	return s
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task *Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// ClaimTask moves a pending task to processing.
func (s *MockTaskStore) ClaimTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	return s.ClaimFn(ctx, taskID)
}

// CompleteTask marks a task completed with its result.
func (s *MockTaskStore) CompleteTask(ctx context.Context, taskID uuid.UUID, result json.RawMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = TaskStatusCompleted
	t.Result = result
	t.ErrorMessage = ""
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// GetTask returns a copy of the stored task.
func (s *MockTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// GetTasks returns copies of the known tasks among taskIDs.
func (s *MockTaskStore) GetTasks(ctx context.Context, taskIDs []uuid.UUID) ([]*Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]*Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		if t, ok := s.tasks[id]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetPendingTasks retrieves pending tasks not updated within olderThan
func (s *MockTaskStore) GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	return s.byStatus(TaskStatusPending, olderThan), nil
}

// GetProcessingTasks retrieves processing tasks not updated within olderThan
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *MockTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []*Task {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*Task
	now := time.Now().UTC()
	for _, t := range s.tasks {
		if t.Status != status {
			continue
		}
		if olderThan == 0 || now.Sub(t.UpdatedAt) > olderThan {
			cp := *t
			out = append(out, &cp)
		}
	}
	SortByCreation(out)
	return out
}

// WithTx implements TaskStore.WithTx for the mock store
// In the mock implementation, we just return the same store instance
func (s *MockTaskStore) WithTx(tx store.DBTX) TaskStore {
	return s
}
