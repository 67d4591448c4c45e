package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fossabot/failmap/internal/config"
	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/scanner"
	"github.com/spf13/cobra"
)

// cli carries the process streams and the config source shared by all
// commands; tests replace them.
type cli struct {
	out        io.Writer
	in         io.Reader
	logOutput  io.Writer
	loadConfig func() (*config.Config, error)
	logLevel   string
}

func newCLI() *cli {
	return &cli{
		out:        os.Stdout,
		in:         os.Stdin,
		logOutput:  os.Stderr,
		loadConfig: config.Load,
	}
}

// setup loads the configuration and installs the process logger.
func (c *cli) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cfg.Server.LogLevel
	if cfg.Server.Debug {
		level = "debug"
	}
	if c.logLevel != "" {
		level = c.logLevel
	}
	log, err := logger.Setup(logger.LoggerConfig{
		Level:       level,
		ServiceName: cfg.Server.ServiceName,
		Output:      c.logOutput,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// open runs setup and builds the application.
func (c *cli) open(ctx context.Context, opts appOptions) (*application, error) {
	cfg, log, err := c.setup()
	if err != nil {
		return nil, err
	}
	return newApplication(ctx, cfg, log, opts)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "failmap",
		Short: "Failmap administration",
		Long: "Failmap maps the security of public organizations' websites.\n" +
			"This executable manages the store, serves the site and runs the task workers.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(c.out)
	root.SetIn(c.in)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(c),
		newLoadDataCmd(c),
		newCollectStaticCmd(c),
		newProductionCmd(c),
		newCeleryCmd(c),
		newTaskCmd(c, taskCommand{
			use:      "rebuild-ratings",
			short:    "Rebuild url and organization ratings",
			taskType: scanner.TypeRebuildRatings,
		}),
		newTaskCmd(c, taskCommand{
			use:      "scan-security-headers",
			short:    "Scan endpoints for security headers",
			taskType: scanner.TypeScanSecurityHeaders,
		}),
		newTaskCmd(c, taskCommand{
			use:      "scan-plain-http",
			short:    "Check that plain http endpoints have an https counterpart",
			taskType: scanner.TypeScanPlainHTTP,
		}),
		newTaskCmd(c, taskCommand{
			use:      "scan-dummy",
			short:    "Record a dummy scan on every endpoint",
			taskType: scanner.TypeScanDummy,
		}),
		newCheckDefaultRatingsCmd(c),
		newExportOrganizationCmd(c),
		newSmokeTestCmd(c),
	)
	return root
}
