package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TaskStore implements task.TaskStore on the tasks table.
type TaskStore struct {
	db store.DBTX
}

var _ task.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore on db.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx returns a store using tx.
func (s *TaskStore) WithTx(tx store.DBTX) task.TaskStore {
	return &TaskStore{db: tx}
}

// SaveTask persists a task to the database
func (s *TaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	log := logger.FromContext(ctx)

	m := &taskModel{
		ID:           t.ID,
		Type:         t.Type,
		Payload:      string(t.Payload),
		Status:       string(t.Status),
		Result:       string(t.Result),
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		log.Error("failed to save task",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
		return MapError(err)
	}
	return nil
}

// UpdateTaskStatus updates the status of a task in the database
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	res, err := s.db.NewUpdate().Model((*taskModel)(nil)).
		Set("status = ?", string(status)).
		Set("error_message = ?", errorMsg).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", taskID.String()).
		Exec(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrTaskNotFound)
}

// ClaimTask moves a pending task to processing in a single statement.
func (s *TaskStore) ClaimTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	res, err := s.db.NewUpdate().Model((*taskModel)(nil)).
		Set("status = ?", string(task.TaskStatusProcessing)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", taskID.String()).
		Where("status = ?", string(task.TaskStatusPending)).
		Exec(ctx)
	if err != nil {
		return false, MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}
	return n == 1, nil
}

// CompleteTask marks a task completed and stores its result.
func (s *TaskStore) CompleteTask(ctx context.Context, taskID uuid.UUID, result json.RawMessage) error {
	res, err := s.db.NewUpdate().Model((*taskModel)(nil)).
		Set("status = ?", string(task.TaskStatusCompleted)).
		Set("result = ?", string(result)).
		Set("error_message = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", taskID.String()).
		Exec(ctx)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrTaskNotFound)
}

// GetTask returns the task with taskID.
func (s *TaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	var m taskModel
	if err := s.db.NewSelect().Model(&m).Where("id = ?", taskID.String()).Scan(ctx); err != nil {
		return nil, mapEntityError(err, store.ErrTaskNotFound, nil)
	}
	return m.toTask(), nil
}

// GetTasks returns the known tasks among taskIDs, oldest first.
func (s *TaskStore) GetTasks(ctx context.Context, taskIDs []uuid.UUID) ([]*task.Task, error) {
	if len(taskIDs) == 0 {
		return []*task.Task{}, nil
	}
	ids := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		ids[i] = id.String()
	}

	var models []taskModel
	err := s.db.NewSelect().Model(&models).
		Where("id IN (?)", bun.In(ids)).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return toTasks(models), nil
}

// GetPendingTasks retrieves pending tasks, optionally only those idle for olderThan.
func (s *TaskStore) GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusPending, olderThan)
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *TaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusProcessing, olderThan)
}

// getTasksByStatus is a helper method to get tasks by status with optional age filter
func (s *TaskStore) getTasksByStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]*task.Task, error) {
	var models []taskModel
	q := s.db.NewSelect().Model(&models).
		Where("status = ?", string(status)).
		OrderExpr("created_at ASC")
	if olderThan > 0 {
		q = q.Where("updated_at < ?", time.Now().UTC().Add(-olderThan))
	}
	if err := q.Scan(ctx); err != nil {
		logger.FromContext(ctx).Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, MapError(err)
	}
	return toTasks(models), nil
}

func (m *taskModel) toTask() *task.Task {
	return &task.Task{
		ID:           m.ID,
		Type:         m.Type,
		Payload:      rawOrNil(m.Payload),
		Status:       task.TaskStatus(m.Status),
		Result:       rawOrNil(m.Result),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func toTasks(models []taskModel) []*task.Task {
	out := make([]*task.Task, len(models))
	for i := range models {
		out[i] = models[i].toTask()
	}
	return out
}
