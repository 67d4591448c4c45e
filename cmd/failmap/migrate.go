package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fossabot/failmap/internal/fixtures"
	"github.com/fossabot/failmap/internal/platform/sqlstore"
	"github.com/fossabot/failmap/internal/staticfiles"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := c.setup()
			if err != nil {
				return err
			}
			if !status && cfg.Database.RootPassword != "" {
				if err := sqlstore.CreateDatabase(ctx, cfg.Database); err != nil {
					return err
				}
			}
			app, err := newApplication(ctx, cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer app.cleanup()

			if !status {
				n, err := app.migrate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations.\n", n)
				return nil
			}

			m, err := app.migrator()
			if err != nil {
				return err
			}
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, s := range statuses {
				applied := "pending"
				if s.Applied {
					applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list migrations instead of applying them")
	return cmd
}

func newLoadDataCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "loaddata <fixture>...",
		Short: "Load fixtures into the database",
		Long: "Load fixtures into the database. A fixture is the name of a bundled\n" +
			"fixture or the path of a YAML file. Loading is idempotent.",
		Example:   "  failmap loaddata development",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: fixtures.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.cleanup()

			if err := app.loadFixtures(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %d fixture(s).\n", len(args))
			return nil
		},
	}
}

func newCollectStaticCmd(c *cli) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "collectstatic",
		Short: "Write static assets and the compiled bundle to STATIC_ROOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.setup()
			if err != nil {
				return err
			}
			if dest == "" {
				dest = cfg.Static.Root
			}
			if dest == "" {
				return fmt.Errorf("no destination: set STATIC_ROOT or pass --dest")
			}
			n, err := staticfiles.Collect(dest)
			if err != nil {
				return err
			}
			log.Info("collected static files", "dest", dest, "files", n)
			fmt.Fprintf(cmd.OutOrStdout(), "%d static files copied to '%s'.\n", n, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (defaults to STATIC_ROOT)")
	return cmd
}
