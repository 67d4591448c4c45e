package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fossabot/failmap/internal/broker"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/google/uuid"
)

// Client submits tasks for background execution or runs them in-process.
type Client struct {
	store    TaskStore
	broker   broker.Broker
	registry *Registry
	queue    string
	logger   *slog.Logger
}

// NewClient creates a Client publishing on queue. b may be nil for clients
// that only Apply tasks.
func NewClient(store TaskStore, b broker.Broker, registry *Registry, queue string, logger *slog.Logger) *Client {
	return &Client{
		store:    store,
		broker:   b,
		registry: registry,
		queue:    queue,
		logger:   logger.With("component", "task_client"),
	}
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Submit persists a pending task and publishes it on the broker.
func (c *Client) Submit(ctx context.Context, taskType string, payload any) (uuid.UUID, error) {
	if _, err := c.registry.Lookup(taskType); err != nil {
		return uuid.Nil, err
	}
	if c.broker == nil {
		return uuid.Nil, fmt.Errorf("cannot submit %s: no broker configured", taskType)
	}
	data, err := encodePayload(payload)
	if err != nil {
		return uuid.Nil, err
	}

	t := NewTask(taskType, data)
	if err := c.store.SaveTask(ctx, t); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	msg := broker.Message{ID: t.ID.String(), Type: t.Type, Payload: t.Payload}
	if err := c.broker.Publish(ctx, c.queue, msg); err != nil {
		if updateErr := c.store.UpdateTaskStatus(ctx, t.ID, TaskStatusFailed, "failed to publish: "+err.Error()); updateErr != nil {
			c.logger.Error("failed to mark unpublished task as failed", "task_id", t.ID, "error", updateErr)
		}
		return uuid.Nil, fmt.Errorf("failed to publish task: %w", err)
	}

	c.logger.Info("task submitted", "task_id", t.ID, "task_type", t.Type, "queue", c.queue)
	return t.ID, nil
}

// SubmitGroup submits one task per payload and returns their IDs in order.
func (c *Client) SubmitGroup(ctx context.Context, taskType string, payloads []any) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(payloads))
	for _, p := range payloads {
		id, err := c.Submit(ctx, taskType, p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Apply runs a task in the calling goroutine without the broker. The task is
// still recorded so its outcome can be inspected later.
func (c *Client) Apply(ctx context.Context, taskType string, payload any) (*Task, error) {
	if _, err := c.registry.Lookup(taskType); err != nil {
		return nil, err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	t := NewTask(taskType, data)
	t.Status = TaskStatusProcessing
	if err := c.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	log := c.logger.With("task_id", t.ID, "task_type", t.Type)
	log.Debug("applying task")

	result, execErr := c.registry.Execute(logger.WithContext(ctx, log), t)
	t.UpdatedAt = time.Now().UTC()
	if execErr != nil {
		t.Status = TaskStatusFailed
		t.ErrorMessage = execErr.Error()
		if err := c.store.UpdateTaskStatus(ctx, t.ID, TaskStatusFailed, execErr.Error()); err != nil {
			log.Error("failed to update task status to failed", "error", err)
		}
		return t, execErr
	}

	t.Status = TaskStatusCompleted
	t.Result = result
	if err := c.store.CompleteTask(ctx, t.ID, result); err != nil {
		return t, fmt.Errorf("failed to record task result: %w", err)
	}
	return t, nil
}

// Status returns the stored state of a task.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (*Task, error) {
	return c.store.GetTask(ctx, id)
}

// Wait polls the tasks every interval until all of them are done or ctx
// ends, logging a count of statuses on every poll.
func (c *Client) Wait(ctx context.Context, ids []uuid.UUID, interval time.Duration) ([]*Task, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tasks, err := c.store.GetTasks(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to poll tasks: %w", err)
		}

		counts := StatusCounts(tasks)
		c.logger.Info("waiting for results", "counts", counts, "total", len(ids))
		if len(tasks) == len(ids) && counts[TaskStatusCompleted]+counts[TaskStatusFailed] == len(ids) {
			return tasks, nil
		}

		select {
		case <-ctx.Done():
			return tasks, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StatusCounts counts tasks per status.
func StatusCounts(tasks []*Task) map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// SortByCreation orders tasks oldest first.
func SortByCreation(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
