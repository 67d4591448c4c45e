package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := func(ctx context.Context, payload json.RawMessage) (any, error) { return nil, nil }

	require.NoError(t, r.Register("scan_dummy", noop))
	require.NoError(t, r.Register("rebuild_ratings", noop))
	assert.ErrorIs(t, r.Register("scan_dummy", noop), ErrDuplicateHandler)

	assert.Equal(t, []string{"rebuild_ratings", "scan_dummy"}, r.Types())

	_, err := r.Lookup("scan_dummy")
	assert.NoError(t, err)
	_, err = r.Lookup("scan_tls")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistryExecute(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register("echo", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in map[string]int
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return map[string]int{"doubled": in["n"] * 2}, nil
	}))
	require.NoError(t, r.Register("fail", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	}))
	require.NoError(t, r.Register("panic", func(ctx context.Context, payload json.RawMessage) (any, error) {
		panic("unexpected")
	}))
	require.NoError(t, r.Register("silent", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return nil, nil
	}))

	ctx := context.Background()

	result, err := r.Execute(ctx, NewTask("echo", json.RawMessage(`{"n":21}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"doubled":42}`, string(result))

	_, err = r.Execute(ctx, NewTask("fail", nil))
	assert.EqualError(t, err, "boom")

	_, err = r.Execute(ctx, NewTask("panic", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	result, err = r.Execute(ctx, NewTask("silent", nil))
	require.NoError(t, err)
	assert.Nil(t, result)

	_, err = r.Execute(ctx, NewTask("missing", nil))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestConcurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pool     string
		override int
		want     int
		wantErr  bool
	}{
		{pool: PoolEventlet, want: DefaultGreenConcurrency},
		{pool: PoolGevent, want: DefaultGreenConcurrency},
		{pool: PoolSolo, want: 1},
		{pool: PoolEventlet, override: 8, want: 8},
		{pool: PoolSolo, override: 3, want: 3},
		{pool: "fibers", wantErr: true},
		{pool: PoolSolo, override: -1, wantErr: true},
	}

	for _, tt := range tests {
		got, err := Concurrency(tt.pool, tt.override)
		if tt.wantErr {
			assert.Error(t, err, tt.pool)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.pool)
	}

	n, err := Concurrency(PoolPrefork, 0)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestTaskStatusDone(t *testing.T) {
	t.Parallel()

	assert.False(t, TaskStatusPending.Done())
	assert.False(t, TaskStatusProcessing.Done())
	assert.True(t, TaskStatusCompleted.Done())
	assert.True(t, TaskStatusFailed.Done())
}
