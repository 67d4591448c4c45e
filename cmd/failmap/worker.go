package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCeleryCmd(c *cli) *cobra.Command {
	celery := &cobra.Command{
		Use:   "celery",
		Short: "Task queue commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	celery.AddCommand(newWorkerCmd(c))
	return celery
}

func newWorkerCmd(c *cli) *cobra.Command {
	var (
		pool        string
		concurrency int
		queue       string
	)
	cmd := &cobra.Command{
		Use:     "worker",
		Short:   "Consume and execute tasks from the broker",
		Example: "  failmap celery worker -l info --pool eventlet",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := c.setup()
			if err != nil {
				return err
			}
			if queue != "" {
				cfg.Broker.Queue = queue
			}
			if pool == "" {
				pool = cfg.Task.Pool
			}
			if concurrency == 0 {
				concurrency = cfg.Task.WorkerCount
			}

			app, err := newApplication(ctx, cfg, log, appOptions{broker: true})
			if err != nil {
				return err
			}
			defer app.cleanup()

			runner, err := app.newRunner(pool, concurrency)
			if err != nil {
				return err
			}
			if err := runner.Start(ctx); err != nil {
				return err
			}
			log.Info("worker ready", "queue", cfg.Broker.Queue, "pool", pool, "task_types", app.registry.Types())

			shutdownCh := make(chan os.Signal, 1)
			signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(shutdownCh)

			select {
			case sig := <-shutdownCh:
				log.Info("worker shutting down", "signal", sig.String())
			case <-ctx.Done():
				log.Info("worker context canceled, shutting down")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&c.logLevel, "loglevel", "l", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVarP(&pool, "pool", "P", "", "pool model: eventlet, gevent, prefork, threads or solo")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "number of concurrent consumers (defaults to the pool model)")
	cmd.Flags().StringVarP(&queue, "queues", "Q", "", "queue to consume (defaults to broker.queue)")
	return cmd
}
