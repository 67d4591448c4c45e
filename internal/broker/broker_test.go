package broker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testBrokerContract checks the behaviour every Broker implementation shares.
// newBroker must return an empty broker owned by the test.
func testBrokerContract(t *testing.T, newBroker func(t *testing.T) Broker) {
	t.Run("publish consume ack", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx := context.Background()

		msg := NewMessage("scan_dummy", json.RawMessage(`{"organization_id":1}`))
		require.NoError(t, b.Publish(ctx, "default", msg))

		d, err := b.Consume(ctx, "default")
		require.NoError(t, err)

		got := d.Message()
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "scan_dummy", got.Type)
		assert.JSONEq(t, `{"organization_id":1}`, string(got.Payload))
		assert.False(t, got.PublishedAt.IsZero())

		require.NoError(t, d.Ack(ctx))
		assert.ErrorIs(t, d.Ack(ctx), ErrAlreadyAcked)
		assert.ErrorIs(t, d.Nack(ctx), ErrAlreadyAcked)
	})

	t.Run("preserves order", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx := context.Background()

		var want []string
		for _, typ := range []string{"a", "b", "c"} {
			msg := NewMessage(typ, nil)
			want = append(want, msg.ID)
			require.NoError(t, b.Publish(ctx, "q", msg))
		}

		var got []string
		for range want {
			d, err := b.Consume(ctx, "q")
			require.NoError(t, err)
			got = append(got, d.Message().ID)
			require.NoError(t, d.Ack(ctx))
		}
		assert.Equal(t, want, got)
	})

	t.Run("nack redelivers", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx := context.Background()

		msg := NewMessage("rebuild_ratings", nil)
		require.NoError(t, b.Publish(ctx, "default", msg))

		d, err := b.Consume(ctx, "default")
		require.NoError(t, err)
		require.NoError(t, d.Nack(ctx))
		assert.ErrorIs(t, d.Nack(ctx), ErrAlreadyAcked)

		again, err := b.Consume(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, msg.ID, again.Message().ID)
		assert.Equal(t, 1, again.Message().Attempts)
		require.NoError(t, again.Ack(ctx))

		empty, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = b.Consume(empty, "default")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("queues are independent", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx := context.Background()

		require.NoError(t, b.Publish(ctx, "one", NewMessage("a", nil)))
		require.NoError(t, b.Publish(ctx, "two", NewMessage("b", nil)))

		d, err := b.Consume(ctx, "two")
		require.NoError(t, err)
		assert.Equal(t, "b", d.Message().Type)

		d, err = b.Consume(ctx, "one")
		require.NoError(t, err)
		assert.Equal(t, "a", d.Message().Type)
	})

	t.Run("consume honours context", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := b.Consume(ctx, "empty")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed broker", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t)
		ctx := context.Background()
		require.NoError(t, b.Ping(ctx))
		require.NoError(t, b.Close())

		assert.ErrorIs(t, b.Ping(ctx), ErrClosed)
		assert.ErrorIs(t, b.Publish(ctx, "default", NewMessage("a", nil)), ErrClosed)
		_, err := b.Consume(ctx, "default")
		assert.ErrorIs(t, err, ErrClosed)
	})
}
