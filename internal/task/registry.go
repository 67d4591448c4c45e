package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrUnknownType      = errors.New("unknown task type")
	ErrDuplicateHandler = errors.New("task handler already registered")
)

// Handler executes a task payload. The returned value is stored as the
// task result after JSON encoding.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Registry maps task types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for taskType.
func (r *Registry) Register(taskType string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[taskType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Lookup returns the handler of taskType.
func (r *Registry) Lookup(taskType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, taskType)
	}
	return h, nil
}

// Types lists the registered task types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Execute runs the handler of t and encodes its result. A panicking handler
// is reported as an error.
func (r *Registry) Execute(ctx context.Context, t *Task) (result json.RawMessage, err error) {
	h, err := r.Lookup(t.Type)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("task %s panicked: %v", t.Type, p)
		}
	}()

	out, err := h(ctx, t.Payload)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result of %s: %w", t.Type, err)
	}
	return data, nil
}
