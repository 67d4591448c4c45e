package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/fixtures"
	"github.com/spf13/cobra"
)

func exportFileName(now time.Time) string {
	return "failmap_organization_export_" + now.Format("20060102_150405") + ".yaml"
}

func newExportOrganizationCmd(c *cli) *cobra.Command {
	var (
		yes     bool
		output  string
		ratings bool
	)
	cmd := &cobra.Command{
		Use:   "export-organization <name>...",
		Short: "Export organizations with their urls, endpoints and scans as a YAML fixture",
		Long: "Export organizations with their urls, endpoints and scans as a YAML fixture\n" +
			"that loaddata accepts. Use -o - to write to standard output.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.cleanup()

			data, err := fixtures.Export(cmd.Context(), app.stores, args, ratings)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = exportFileName(time.Now())
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Export %s to %s? [y/N] ", strings.Join(args, ", "), output)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Export cancelled.")
					return nil
				}
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default failmap_organization_export_<timestamp>.yaml)")
	cmd.Flags().BoolVar(&ratings, "ratings", false, "include organization ratings")
	return cmd
}
