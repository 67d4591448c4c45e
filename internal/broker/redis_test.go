package broker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisBroker(t *testing.T, mr *miniredis.Miniredis, consumer string) *RedisBroker {
	t.Helper()
	b := NewRedisBroker(redis.NewClient(&redis.Options{Addr: mr.Addr()}), consumer, testLogger())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBroker_Contract(t *testing.T) {
	t.Parallel()
	testBrokerContract(t, func(t *testing.T) Broker {
		return newTestRedisBroker(t, miniredis.RunT(t), "worker-1")
	})
}

func TestRedisBroker_ProcessingList(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	b := newTestRedisBroker(t, mr, "worker-1")
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "default", NewMessage("scan_dummy", nil)))
	d, err := b.Consume(ctx, "default")
	require.NoError(t, err)

	assert.False(t, mr.Exists("default"))
	pending, err := mr.List(ProcessingKey("default", "worker-1"))
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, d.Ack(ctx))
	assert.False(t, mr.Exists(ProcessingKey("default", "worker-1")))
}

func TestRedisBroker_RecoversUnacknowledgedInOrder(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	ctx := context.Background()

	crashed := newTestRedisBroker(t, mr, "worker-1")
	var ids []string
	for _, typ := range []string{"a", "b", "c"} {
		msg := NewMessage(typ, nil)
		ids = append(ids, msg.ID)
		require.NoError(t, crashed.Publish(ctx, "default", msg))
	}
	for range 2 {
		_, err := crashed.Consume(ctx, "default")
		require.NoError(t, err)
	}
	require.NoError(t, crashed.Close())

	other := newTestRedisBroker(t, mr, "worker-2")
	restarted := newTestRedisBroker(t, mr, "worker-1")

	var got []string
	for range ids {
		d, err := restarted.Consume(ctx, "default")
		require.NoError(t, err)
		got = append(got, d.Message().ID)
		require.NoError(t, d.Ack(ctx))
	}
	assert.Equal(t, ids, got)
	assert.False(t, mr.Exists(ProcessingKey("default", "worker-1")))

	require.NoError(t, other.Publish(ctx, "default", NewMessage("d", nil)))
	d, err := other.Consume(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "d", d.Message().Type)
}

func TestRedisBroker_DropsUndecodableMessages(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	b := newTestRedisBroker(t, mr, "worker-1")
	ctx := context.Background()

	_, err := mr.Lpush("default", "not json")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "default", NewMessage("scan_dummy", nil)))

	d, err := b.Consume(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "scan_dummy", d.Message().Type)
	require.NoError(t, d.Ack(ctx))
	assert.False(t, mr.Exists(ProcessingKey("default", "worker-1")))
}

func TestRedisBroker_NackRequeuesWithAttempt(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	b := newTestRedisBroker(t, mr, "worker-1")
	ctx := context.Background()

	first := NewMessage("a", nil)
	require.NoError(t, b.Publish(ctx, "default", first))
	require.NoError(t, b.Publish(ctx, "default", NewMessage("b", nil)))

	d, err := b.Consume(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, d.Nack(ctx))

	again, err := b.Consume(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.Message().ID)
	assert.Equal(t, 1, again.Message().Attempts)

	queued, err := mr.List("default")
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}
