package migrations

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_UnsupportedEngine(t *testing.T) {
	t.Parallel()

	_, err := New(openMemoryDB(t), "oracle", testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
}

func TestEmbeddedMigrationsPerEngine(t *testing.T) {
	t.Parallel()

	for engine, d := range dialects {
		entries, err := embedded.ReadDir(d.dir)
		require.NoError(t, err, engine)
		assert.NotEmpty(t, entries, "no migrations for %s", engine)
	}
}

func TestMigrator_UpStatusVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openMemoryDB(t)

	m, err := New(db, "sqlite", testLogger())
	require.NoError(t, err)

	pending, err := m.HasPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)
	assert.Equal(t, "00001_initial.sql", statuses[0].Name)

	t.Run("second run is a no-op", func(t *testing.T) {
		applied, err := m.Up(ctx)
		require.NoError(t, err)
		assert.Zero(t, applied)
	})

	t.Run("schema exists", func(t *testing.T) {
		for _, table := range []string{"organizations", "urls", "endpoints", "scans", "tasks", "users", "sessions"} {
			var name string
			err := db.QueryRowContext(ctx,
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
			require.NoError(t, err, table)
		}
	})
}
