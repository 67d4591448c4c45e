// Package migrations holds the embedded schema migrations per SQL dialect
// and applies them with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql
var embedded embed.FS

// ErrUnsupportedEngine is returned for engines without migrations.
var ErrUnsupportedEngine = errors.New("unsupported database engine")

// Status describes one migration and whether it has been applied.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded migrations of one engine. It does not own
// the database handle.
type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// dialects maps engine names to goose dialects and their migration directory.
var dialects = map[string]struct {
	dialect goose.Dialect
	dir     string
}{
	"sqlite":   {goose.DialectSQLite3, "sql/sqlite3"},
	"mysql":    {goose.DialectMySQL, "sql/mysql"},
	"postgres": {goose.DialectPostgres, "sql/postgres"},
}

// New creates a Migrator for db, which must be of the given engine
// ("sqlite", "mysql" or "postgres").
func New(db *sql.DB, engine string, logger *slog.Logger) (*Migrator, error) {
	d, ok := dialects[engine]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}
	fsys, err := fs.Sub(embedded, d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations for %s: %w", engine, err)
	}
	provider, err := goose.NewProvider(d.dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Migrator{
		provider: provider,
		logger:   logger.With("component", "migrations", "engine", engine),
	}, nil
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	start := time.Now()
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		m.logger.Info("applied migration",
			"version", r.Source.Version,
			"name", filepath.Base(r.Source.Path),
			"duration_ms", r.Duration.Milliseconds())
	}
	if err != nil {
		m.logger.Error("migration failed", "error", err)
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}
	if len(results) == 0 {
		m.logger.Info("no migrations to apply")
	} else {
		m.logger.Info("migrations applied",
			"count", len(results),
			"duration_ms", time.Since(start).Milliseconds())
	}
	return len(results), nil
}

// Status lists every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			Name:      filepath.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the current schema version, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// HasPending reports whether migrations remain to be applied.
func (m *Migrator) HasPending(ctx context.Context) (bool, error) {
	pending, err := m.provider.HasPending(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check pending migrations: %w", err)
	}
	return pending, nil
}

