package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fossabot/failmap/internal/store"
	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Done reports whether the status is final.
func (s TaskStatus) Done() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is a persisted unit of background work.
type Task struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       TaskStatus      `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewTask creates a pending task.
func NewTask(taskType string, payload json.RawMessage) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Payload:   payload,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a new task.
	SaveTask(ctx context.Context, task *Task) error

	// UpdateTaskStatus sets the status and error message of a task.
	// Returns store.ErrTaskNotFound when the task does not exist.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// ClaimTask atomically moves a pending task to processing. It reports
	// false when the task is not pending, e.g. because another worker
	// already claimed a duplicate delivery.
	ClaimTask(ctx context.Context, taskID uuid.UUID) (bool, error)

	// CompleteTask marks a task completed and stores its result.
	CompleteTask(ctx context.Context, taskID uuid.UUID, result json.RawMessage) error

	GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error)

	// GetTasks returns the tasks with the given IDs; unknown IDs are skipped.
	GetTasks(ctx context.Context, taskIDs []uuid.UUID) ([]*Task, error)

	// GetPendingTasks retrieves pending tasks. If olderThan is non-zero, only
	// tasks not updated for at least that long are returned.
	GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status
	// If olderThan is non-zero, only returns tasks that have been in this state
	// longer than the specified duration
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx store.DBTX) TaskStore
}
