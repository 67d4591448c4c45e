// Package broker carries task messages from web front-ends to workers.
//
// A Broker holds named queues of JSON encoded messages. Consumers receive a
// Delivery that must be acknowledged once processed; unacknowledged
// deliveries are handed out again when the consumer Nacks them or, for the
// Redis broker, when a restarted consumer recovers its processing list.
// Brokers give no durability guarantee: a restarted memory broker, or a
// Redis server without persistence, drops pending work.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by brokers.
var (
	ErrClosed         = errors.New("broker is closed")
	ErrQueueFull      = errors.New("queue is full")
	ErrUnsupportedURL = errors.New("unsupported broker url")
	ErrAlreadyAcked   = errors.New("delivery already acknowledged")
)

// Message is the unit of work carried by the broker.
type Message struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempts    int             `json:"attempts"`
	PublishedAt time.Time       `json:"published_at"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(taskType string, payload json.RawMessage) Message {
	return Message{ID: uuid.NewString(), Type: taskType, Payload: payload}
}

// Delivery is a consumed message awaiting acknowledgement.
type Delivery interface {
	Message() Message
	// Ack removes the message from the broker.
	Ack(ctx context.Context) error
	// Nack returns the message to its queue for redelivery.
	Nack(ctx context.Context) error
}

// Broker publishes and consumes messages on named queues.
type Broker interface {
	// Publish appends msg to queue. PublishedAt is set when zero.
	Publish(ctx context.Context, queue string, msg Message) error

	// Consume blocks until a message is available on queue, ctx is done
	// or the broker is closed.
	Consume(ctx context.Context, queue string) (Delivery, error)

	// Ping checks that the broker is reachable.
	Ping(ctx context.Context) error

	Close() error
}

func stamp(msg Message) Message {
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	return msg
}
