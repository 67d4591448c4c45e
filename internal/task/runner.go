package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fossabot/failmap/internal/broker"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/google/uuid"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// Queue is the broker queue consumed by the runner.
	Queue string

	// Concurrency determines how many consumers process tasks at once.
	Concurrency int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// RetryDelay is the pause after a failed consume before trying again.
	RetryDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Queue:                  "default",
		Concurrency:            DefaultGreenConcurrency,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		RetryDelay:             time.Second,
	}
}

// Runner consumes task messages from the broker and executes them.
type Runner struct {
	store      TaskStore
	broker     broker.Broker
	registry   *Registry
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task *Task, err error)

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a new Runner
func NewRunner(store TaskStore, b broker.Broker, registry *Registry, config RunnerConfig, logger *slog.Logger) *Runner {
	defaults := DefaultRunnerConfig()
	if config.Queue == "" {
		config.Queue = defaults.Queue
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.StuckTaskAge <= 0 {
		config.StuckTaskAge = defaults.StuckTaskAge
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = defaults.StuckTaskCheckInterval
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	logger = logger.With("component", "task_runner", "queue", config.Queue)
	return &Runner{
		store:    store,
		broker:   b,
		registry: registry,
		config:   config,
		logger:   logger,
		errHandler: func(task *Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID,
				"task_type", task.Type,
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(task *Task, err error)) {
	r.errHandler = handler
}

// Start recovers stale tasks, then starts the consumers and the stuck task
// monitor. They run until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting consumers", "concurrency", r.config.Concurrency, "task_types", r.registry.Types())
	for i := 0; i < r.config.Concurrency; i++ {
		r.wg.Add(1)
		go r.consumer(ctx, i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor(ctx)

	return nil
}

// Stop signals the consumers to finish and waits for in-flight tasks.
func (r *Runner) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()
}

// Recover republishes tasks that a crashed worker left behind: processing
// tasks are reset to pending first, and pending tasks whose message may
// have been lost with the broker are published again. Duplicate messages
// are harmless since only one consumer can claim a pending task.
func (r *Runner) Recover(ctx context.Context) error {
	pendingTasks, err := r.store.GetPendingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, t := range pendingTasks {
		r.requeue(ctx, t)
	}

	for _, t := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", t.ID,
				"task_type", t.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, t)
	}

	return nil
}

func (r *Runner) requeue(ctx context.Context, t *Task) {
	msg := broker.Message{ID: t.ID.String(), Type: t.Type, Payload: t.Payload}
	if err := r.broker.Publish(ctx, r.config.Queue, msg); err != nil {
		r.logger.Error("failed to requeue task",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
	}
}

// consumer processes deliveries until ctx ends or the broker closes.
func (r *Runner) consumer(ctx context.Context, id int) {
	defer r.wg.Done()

	r.logger.Debug("starting consumer", "consumer_id", id)
	for {
		d, err := r.broker.Consume(ctx, r.config.Queue)
		switch {
		case err == nil:
			r.process(ctx, d, id)
		case ctx.Err() != nil:
			r.logger.Debug("stopping consumer", "consumer_id", id)
			return
		case errors.Is(err, broker.ErrClosed):
			r.logger.Debug("broker closed, stopping consumer", "consumer_id", id)
			return
		default:
			r.logger.Error("failed to consume", "consumer_id", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.config.RetryDelay):
			}
		}
	}
}

// process handles execution of a single delivery. Work is not interrupted
// by shutdown; the store writes use a context detached from cancellation.
func (r *Runner) process(ctx context.Context, d broker.Delivery, consumerID int) {
	ctx = context.WithoutCancel(ctx)
	msg := d.Message()
	log := r.logger.With(
		"task_id", msg.ID,
		"task_type", msg.Type,
		"consumer_id", consumerID,
	)

	ack := func() {
		if err := d.Ack(ctx); err != nil {
			log.Error("failed to acknowledge message", "error", err)
		}
	}

	id, err := uuid.Parse(msg.ID)
	if err != nil {
		log.Error("dropping message with invalid task id", "error", err)
		ack()
		return
	}

	claimed, err := r.store.ClaimTask(ctx, id)
	if err != nil {
		log.Error("failed to claim task", "error", err)
		if nackErr := d.Nack(ctx); nackErr != nil {
			log.Error("failed to return message to the queue", "error", nackErr)
		}
		return
	}
	if !claimed {
		log.Info("skipping task that is not pending")
		ack()
		return
	}

	t := &Task{ID: id, Type: msg.Type, Payload: msg.Payload, Status: TaskStatusProcessing}

	log.Info("processing task")
	start := time.Now()
	result, err := r.registry.Execute(logger.WithContext(ctx, log), t)
	if err != nil {
		if updateErr := r.store.UpdateTaskStatus(ctx, id, TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(t, err)
	} else {
		log.Info("task completed successfully", "duration", time.Since(start))
		if updateErr := r.store.CompleteTask(ctx, id, result); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}
	}
	ack()
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *Runner) stuckTaskMonitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))
			for _, t := range stuckTasks {
				if err := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", t.ID,
						"task_type", t.Type,
						"error", err)
					continue
				}
				r.requeue(ctx, t)
				r.logger.Info("requeued stuck task", "task_id", t.ID, "task_type", t.Type)
			}
		}
	}
}
