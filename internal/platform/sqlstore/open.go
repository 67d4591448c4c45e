// Package sqlstore implements the store interfaces on top of bun for
// SQLite, MySQL and PostgreSQL. The database profile selects the driver,
// the bun dialect and the DSN.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/config"
	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	// SQL drivers selected by profile.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Database engines.
const (
	EngineSQLite   = "sqlite"
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
)

const (
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
	pingTimeout            = 10 * time.Second
)

// Source describes how to reach the database of a profile.
type Source struct {
	Engine string
	Driver string
	DSN    string
	// Memory is set for in-memory SQLite, which needs a single connection.
	Memory bool
}

// SourceFor resolves the engine, driver and DSN of a database profile.
func SourceFor(cfg config.DatabaseConfig) (Source, error) {
	switch cfg.Profile {
	case config.ProfileDev:
		path := cfg.Path
		if path == "" {
			path = "db.sqlite3"
		}
		return Source{Engine: EngineSQLite, Driver: "sqlite", DSN: sqliteDSN(path)}, nil
	case config.ProfileTest:
		return Source{Engine: EngineSQLite, Driver: "sqlite", DSN: sqliteDSN(":memory:"), Memory: true}, nil
	case config.ProfileProduction:
		return Source{Engine: EngineMySQL, Driver: "mysql", DSN: mysqlDSN(cfg, cfg.User, cfg.Password, cfg.Name)}, nil
	case config.ProfilePostgres:
		return Source{Engine: EnginePostgres, Driver: "pgx", DSN: postgresDSN(cfg)}, nil
	default:
		return Source{}, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func mysqlDSN(cfg config.DatabaseConfig, user, password, name string) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func postgresDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// NewDB wraps an open *sql.DB in bun using the dialect of engine.
func NewDB(sqlDB *sql.DB, engine string) *bun.DB {
	switch engine {
	case EngineMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	case EnginePostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// Open connects to the database of the configured profile, tunes the pool
// and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*bun.DB, Source, error) {
	src, err := SourceFor(cfg)
	if err != nil {
		return nil, Source{}, err
	}

	sqlDB, err := sql.Open(src.Driver, src.DSN)
	if err != nil {
		return nil, src, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if src.Memory {
		// Every SQLite connection to :memory: is a separate database.
		maxOpen = 1
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxIdleConns(maxOpen)
		sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, src, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		"profile", cfg.Profile,
		"engine", src.Engine,
		"max_open_conns", maxOpen)

	return NewDB(sqlDB, src.Engine), src, nil
}

// CreateDatabase creates the configured MySQL database using the root
// account (DB_ROOT_PASSWORD). Other engines need no explicit creation.
func CreateDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	if cfg.Profile != config.ProfileProduction {
		return nil
	}
	rootDB, err := sql.Open("mysql", mysqlDSN(cfg, "root", cfg.RootPassword, ""))
	if err != nil {
		return fmt.Errorf("failed to open database server: %w", err)
	}
	defer func() { _ = rootDB.Close() }()

	name := mysqlIdent(cfg.Name)
	if _, err := rootDB.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+name+" CHARACTER SET utf8mb4"); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if cfg.User != "" && cfg.User != "root" {
		account := mysqlString(cfg.User) + "@'%'"
		if _, err := rootDB.ExecContext(ctx, "CREATE USER IF NOT EXISTS "+account+" IDENTIFIED BY "+mysqlString(cfg.Password)); err != nil {
			return fmt.Errorf("failed to create database user: %w", err)
		}
		if _, err := rootDB.ExecContext(ctx, "GRANT ALL PRIVILEGES ON "+name+".* TO "+account); err != nil {
			return fmt.Errorf("failed to grant privileges: %w", err)
		}
	}
	return nil
}

func mysqlIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func mysqlString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(s) + "'"
}
