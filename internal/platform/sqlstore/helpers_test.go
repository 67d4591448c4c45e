package sqlstore

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/platform/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestDB returns a migrated in-memory SQLite database.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", sqliteDSN(":memory:"))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	m, err := migrations.New(sqlDB, EngineSQLite, testLogger())
	require.NoError(t, err)
	_, err = m.Up(context.Background())
	require.NoError(t, err)

	db := NewDB(sqlDB, EngineSQLite)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createOrganization(t *testing.T, db bun.IDB, name string) *domain.Organization {
	t.Helper()
	ctx := context.Background()
	orgs := NewOrganizationStore(db)

	typ, err := orgs.EnsureType(ctx, "municipality")
	require.NoError(t, err)
	org, err := domain.NewOrganization(name, typ.ID, "nl")
	require.NoError(t, err)
	require.NoError(t, orgs.Create(ctx, org))
	return org
}

func createEndpoint(t *testing.T, db bun.IDB, host string, orgIDs ...int64) (*domain.URL, *domain.Endpoint) {
	t.Helper()
	ctx := context.Background()

	u, err := domain.NewURL(host, orgIDs...)
	require.NoError(t, err)
	require.NoError(t, NewURLStore(db).Create(ctx, u))

	e := &domain.Endpoint{
		URLID:        u.ID,
		Protocol:     domain.ProtocolHTTPS,
		Port:         443,
		IPVersion:    4,
		DiscoveredOn: u.CreatedOn,
	}
	require.NoError(t, NewEndpointStore(db).Create(ctx, e))
	return u, e
}
