package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeTimeout bounds each blocking BLMOVE so cancellation is noticed.
const consumeTimeout = time.Second

// nackScript returns a delivery to the consuming end of its queue only if it
// is still in the processing list, so a settled delivery is never duplicated.
var nackScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
return 1
`)

// RedisBroker implements the reliable list queue pattern: producers LPUSH
// onto the queue and each consumer atomically moves messages into its own
// processing list, removing them only on Ack.
type RedisBroker struct {
	client   redis.UniversalClient
	consumer string
	logger   *slog.Logger

	mu        sync.Mutex
	recovered map[string]bool
}

// NewRedisBroker wraps client. consumer must be unique per worker process;
// when empty it is derived from the hostname and pid.
func NewRedisBroker(client redis.UniversalClient, consumer string, logger *slog.Logger) *RedisBroker {
	if consumer == "" {
		consumer = DefaultConsumerName()
	}
	return &RedisBroker{
		client:    client,
		consumer:  consumer,
		logger:    logger.With("component", "redis_broker", "consumer", consumer),
		recovered: make(map[string]bool),
	}
}

// DefaultConsumerName returns "<hostname>-<pid>", which is stable for the
// lifetime of a worker process.
func DefaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

// ProcessingKey names the list holding the consumer's unacknowledged messages.
func ProcessingKey(queue, consumer string) string {
	return queue + ":processing:" + consumer
}

// Publish pushes msg onto the queue list.
func (b *RedisBroker) Publish(ctx context.Context, queue string, msg Message) error {
	msg = stamp(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := b.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, closedErr(err))
	}
	b.logger.Debug("message published", "queue", queue, "message_id", msg.ID, "message_type", msg.Type)
	return nil
}

// Consume moves the oldest message of queue into the processing list. On the
// first call per queue, messages left in the processing list by a previous
// run of this consumer are put back at the head of the queue, oldest first.
func (b *RedisBroker) Consume(ctx context.Context, queue string) (Delivery, error) {
	processing := ProcessingKey(queue, b.consumer)
	if err := b.recover(ctx, queue, processing); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := b.client.BLMove(ctx, queue, processing, "RIGHT", "LEFT", consumeTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			b.logger.Error("dropping undecodable message", "queue", queue, "error", err)
			b.client.LRem(ctx, processing, 1, raw)
			continue
		}
		return &redisDelivery{broker: b, queue: queue, processing: processing, raw: raw, msg: msg}, nil
	}
}

func (b *RedisBroker) recover(ctx context.Context, queue, processing string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recovered[queue] {
		return nil
	}

	count := 0
	for {
		// The processing list holds the newest delivery on the left; moving
		// left to right leaves the oldest one next in line.
		err := b.client.LMove(ctx, processing, queue, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to recover %s: %w", processing, closedErr(err))
		}
		count++
	}
	if count > 0 {
		b.logger.Info("requeued unacknowledged messages", "queue", queue, "count", count)
	}
	b.recovered[queue] = true
	return nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return closedErr(b.client.Ping(ctx).Err())
}

func closedErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return err
}

// Close closes the Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisDelivery struct {
	broker     *RedisBroker
	queue      string
	processing string
	raw        string
	msg        Message
}

func (d *redisDelivery) Message() Message { return d.msg }

func (d *redisDelivery) Ack(ctx context.Context) error {
	n, err := d.broker.client.LRem(ctx, d.processing, 1, d.raw).Result()
	if err != nil {
		return fmt.Errorf("failed to ack %s: %w", d.msg.ID, closedErr(err))
	}
	if n == 0 {
		return ErrAlreadyAcked
	}
	return nil
}

func (d *redisDelivery) Nack(ctx context.Context) error {
	msg := d.msg
	msg.Attempts++
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	moved, err := nackScript.Run(ctx, d.broker.client, []string{d.processing, d.queue}, d.raw, data).Int()
	if err != nil {
		return fmt.Errorf("failed to nack %s: %w", d.msg.ID, closedErr(err))
	}
	if moved == 0 {
		return ErrAlreadyAcked
	}
	return nil
}
