package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fossabot/failmap/internal/broker"
	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/fixtures"
	"github.com/fossabot/failmap/internal/i18n"
	"github.com/fossabot/failmap/internal/platform/migrations"
	"github.com/fossabot/failmap/internal/platform/sqlstore"
	"github.com/fossabot/failmap/internal/scanner"
	"github.com/fossabot/failmap/internal/service"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/staticfiles"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/fossabot/failmap/internal/web"
	"github.com/uptrace/bun"
)

// application holds the shared dependencies of a command and releases them
// on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Store
	db     *bun.DB
	source sqlstore.Source
	stores store.Stores

	// Tasks
	taskStore task.TaskStore
	broker    broker.Broker
	registry  *task.Registry
	scanner   *scanner.Scanner
	tasks     *task.Client
	runner    *task.Runner
}

// appOptions selects the optional parts of the application.
type appOptions struct {
	// broker connects to the message broker; commands that only touch the
	// store leave it off.
	broker bool
}

// newApplication opens the store and, when asked, the broker, and wires the
// task registry with the scanner handlers.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: task.NewRegistry(),
	}

	db, src, err := sqlstore.Open(ctx, cfg.Database, logger.With("component", "database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	app.db = db
	app.source = src
	app.stores = sqlstore.New(db)
	app.taskStore = sqlstore.NewTaskStore(db)

	app.scanner = scanner.New(db, app.stores, cfg.Scanner, logger)
	if err := app.scanner.Register(app.registry); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to register task handlers: %w", err)
	}

	if opts.broker {
		app.broker, err = broker.Open(ctx, cfg.Broker.URL, logger.With("component", "broker"))
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to open broker: %w", err)
		}
		logger.Info("broker connected", "scheme", cfg.Broker.Scheme(), "queue", cfg.Broker.Queue)
	}
	app.tasks = task.NewClient(app.taskStore, app.broker, app.registry, cfg.Broker.Queue, logger)

	return app, nil
}

// migrate applies pending migrations.
func (app *application) migrate(ctx context.Context) (int, error) {
	m, err := app.migrator()
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}

func (app *application) migrator() (*migrations.Migrator, error) {
	return migrations.New(app.db.DB, app.source.Engine, app.logger)
}

// loadFixtures loads each named fixture in order.
func (app *application) loadFixtures(ctx context.Context, names ...string) error {
	loader := fixtures.NewLoader(app.db, app.stores, auth.NewBcryptVerifier(app.config.Auth.BcryptCost), app.logger)
	for _, name := range names {
		sum, err := loader.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to load fixture %s: %w", name, err)
		}
		app.logger.Info("installed fixture",
			"fixture", name,
			"organizations", sum.Organizations,
			"urls", sum.URLs,
			"endpoints", sum.Endpoints,
			"scans", sum.Scans,
			"users", sum.Users)
	}
	return nil
}

// newRunner builds the worker for the configured queue.
func (app *application) newRunner(pool string, concurrency int) (*task.Runner, error) {
	if app.broker == nil {
		return nil, errors.New("worker needs a broker")
	}
	n, err := task.Concurrency(pool, concurrency)
	if err != nil {
		return nil, err
	}
	cfg := task.DefaultRunnerConfig()
	cfg.Queue = app.config.Broker.Queue
	cfg.Concurrency = n
	cfg.StuckTaskAge = time.Duration(app.config.Task.StuckTaskAgeMinutes) * time.Minute
	cfg.StuckTaskCheckInterval = time.Duration(app.config.Task.StuckTaskCheckIntervalMinutes) * time.Minute

	app.runner = task.NewRunner(app.taskStore, app.broker, app.registry, cfg, app.logger)
	return app.runner, nil
}

// health pings the store and the broker.
func (app *application) health(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if app.broker != nil {
		if err := app.broker.Ping(ctx); err != nil {
			return fmt.Errorf("broker: %w", err)
		}
	}
	return nil
}

// sessionService builds the admin session service on the store.
func (app *application) sessionService() (auth.SessionService, error) {
	return auth.NewSessionService(
		app.config.Auth,
		app.stores.Users,
		app.stores.Sessions,
		auth.NewBcryptVerifier(app.config.Auth.BcryptCost),
	)
}

// setupRouter creates the web front-end handler.
func (app *application) setupRouter(sessions auth.SessionService) (http.Handler, error) {
	translator, err := i18n.New(app.config.Server.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	static, err := staticfiles.FS(app.config.Static.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare static files: %w", err)
	}
	if staticfiles.IsCollected(app.config.Static.Root) {
		app.logger.Info("serving collected static files", "root", app.config.Static.Root)
	} else {
		app.logger.Info("serving embedded static files")
	}

	return web.NewRouter(web.Deps{
		Reports:         service.NewReportService(app.stores, app.logger),
		Admin:           service.NewAdminService(app.stores.Organizations, app.tasks, app.logger),
		Sessions:        sessions,
		Translator:      translator,
		Static:          static,
		Server:          app.config.Server,
		Logger:          app.logger,
		Health:          app.health,
		SessionLifetime: time.Duration(app.config.Auth.SessionLifetimeMinutes) * time.Minute,
	})
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Error("error closing broker", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
}
