package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/platform/migrations"
	"github.com/fossabot/failmap/internal/platform/sqlstore"
	"github.com/fossabot/failmap/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// New opens a migrated in-memory database that is closed when the test ends.
func New(t *testing.T) *bun.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, src, err := sqlstore.Open(ctx, config.DatabaseConfig{
		Profile: config.ProfileTest,
		Name:    "failmap",
	}, discardLogger())
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.New(db.DB, src.Engine, discardLogger())
	require.NoError(t, err, "Failed to create migrator")
	_, err = m.Up(ctx)
	require.NoError(t, err, "Failed to run migrations")

	return db
}

// Stores opens a migrated database and returns the stores bound to it.
func Stores(t *testing.T) (*bun.DB, store.Stores) {
	t.Helper()
	db := New(t)
	return db, sqlstore.New(db)
}

// WithTx executes fn within a transaction that is rolled back afterwards.
func WithTx(t *testing.T, db *bun.DB, fn func(t *testing.T, tx bun.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("Failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
