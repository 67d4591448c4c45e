package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/task"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionPurgeInterval = time.Hour
)

func newProductionCmd(c *cli) *cobra.Command {
	var (
		migrate  bool
		loaddata []string
		addr     string
	)
	cmd := &cobra.Command{
		Use:   "production",
		Short: "Serve the web front-end",
		Long: "Serve the web front-end. With --migrate the schema is brought up to date\n" +
			"first and every --loaddata fixture is loaded before serving.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx, appOptions{broker: true})
			if err != nil {
				return err
			}

			if migrate {
				if _, err := app.migrate(ctx); err != nil {
					app.cleanup()
					return err
				}
			}
			if err := app.loadFixtures(ctx, loaddata...); err != nil {
				app.cleanup()
				return err
			}

			if addr == "" {
				addr = net.JoinHostPort("", strconv.Itoa(app.config.Server.Port))
			}
			return app.Run(ctx, addr)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	cmd.Flags().StringArrayVar(&loaddata, "loaddata", nil, "fixture to load before serving (repeatable)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :<server.port>)")
	return cmd
}

// Run serves the front-end on addr until a signal arrives or ctx ends, then
// shuts down and releases the application.
func (app *application) Run(ctx context.Context, addr string) error {
	sessions, err := app.sessionService()
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to create session service: %w", err)
	}
	router, err := app.setupRouter(sessions)
	if err != nil {
		app.cleanup()
		return err
	}

	// Tasks published on a process-local broker can only be consumed here.
	if app.config.Broker.Scheme() == "memory" {
		runner, err := app.newRunner(task.PoolSolo, 0)
		if err != nil {
			app.cleanup()
			return err
		}
		if err := runner.Start(ctx); err != nil {
			app.cleanup()
			return err
		}
		app.logger.Warn("memory broker: running tasks inside the web process")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return app.startHTTPServer(ctx, listener, router, sessions)
}

// startHTTPServer serves router on listener with graceful shutdown support.
func (app *application) startHTTPServer(ctx context.Context, listener net.Listener, router http.Handler, sessions auth.SessionService) error {
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    app.config.Server.MaxHeaderBytes,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go app.purgeSessions(serverCtx, sessions, sessionPurgeInterval)

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("server failed", "error", err)
			serveErr <- err
			cancelServer()
		}
	}()

	select {
	case sig := <-shutdownCh:
		app.logger.Info("shutting down server", "signal", sig.String())
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	cancelServer()
	app.cleanup()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	default:
	}
	if shutdownErr != nil {
		app.logger.Error("server shutdown failed", "error", shutdownErr)
		return fmt.Errorf("server shutdown failed: %w", shutdownErr)
	}

	app.logger.Info("server shutdown completed")
	return nil
}

// purgeSessions deletes expired admin sessions every interval until ctx ends.
func (app *application) purgeSessions(ctx context.Context, sessions auth.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				app.logger.Error("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
