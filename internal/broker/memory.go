package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMemoryQueueSize is the per-queue buffer of a MemoryBroker.
const DefaultMemoryQueueSize = 1024

// MemoryBroker is a process-local broker backed by buffered channels. It
// suits single-process deployments and tests.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
	size   int
	done   chan struct{}
	closed bool
	logger *slog.Logger
}

// NewMemoryBroker creates a broker whose queues buffer up to size messages.
func NewMemoryBroker(size int, logger *slog.Logger) *MemoryBroker {
	if size <= 0 {
		size = DefaultMemoryQueueSize
	}
	return &MemoryBroker{
		queues: make(map[string]chan Message),
		size:   size,
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (b *MemoryBroker) queue(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Message, b.size)
		b.queues[name] = q
	}
	return q, nil
}

// Publish adds msg to the queue, failing with ErrQueueFull instead of blocking.
func (b *MemoryBroker) Publish(ctx context.Context, queue string, msg Message) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	msg = stamp(msg)

	select {
	case q <- msg:
		b.logger.Debug("message published",
			"queue", queue,
			"message_id", msg.ID,
			"message_type", msg.Type,
			"queue_len", len(q),
			"queue_cap", cap(q))
		return nil
	default:
		return fmt.Errorf("%w: queue %s capacity %d reached", ErrQueueFull, queue, cap(q))
	}
}

// Consume waits for the next message on queue.
func (b *MemoryBroker) Consume(ctx context.Context, queue string) (Delivery, error) {
	q, err := b.queue(queue)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	case msg := <-q:
		return &memoryDelivery{broker: b, queue: queue, msg: msg}, nil
	}
}

// Len reports the number of messages waiting on queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

// Ping fails once the broker is closed.
func (b *MemoryBroker) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops all consumers. Pending messages are dropped.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
		b.logger.Info("memory broker closed")
	}
	return nil
}

type memoryDelivery struct {
	broker *MemoryBroker
	queue  string
	msg    Message

	mu   sync.Mutex
	done bool
}

func (d *memoryDelivery) Message() Message { return d.msg }

func (d *memoryDelivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return ErrAlreadyAcked
	}
	d.done = true
	return nil
}

func (d *memoryDelivery) Ack(ctx context.Context) error {
	return d.settle()
}

func (d *memoryDelivery) Nack(ctx context.Context) error {
	if err := d.settle(); err != nil {
		return err
	}
	msg := d.msg
	msg.Attempts++
	return d.broker.Publish(ctx, d.queue, msg)
}
