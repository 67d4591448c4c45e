package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fossabot/failmap/internal/scanner"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Execution methods of the task commands.
const (
	methodDirect = "direct"
	methodSync   = "sync"
	methodAsync  = "async"
)

type taskCommand struct {
	use      string
	short    string
	taskType string
}

type taskOptions struct {
	method        string
	interval      time.Duration
	taskID        string
	organizations []string
}

func newTaskCmd(c *cli, tc taskCommand) *cobra.Command {
	var (
		opts     taskOptions
		interval int
	)
	cmd := &cobra.Command{
		Use:   tc.use,
		Short: tc.short,
		Long: tc.short + ".\n\n" +
			"direct runs the work in this process, sync queues one task per organization\n" +
			"and waits for all of them, async queues them and prints their ids.",
		Example: "  failmap " + tc.use + " -m sync -i 5 -o \"Gemeente Groningen\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be a positive number of seconds, got %d", interval)
			}
			opts.interval = time.Duration(interval) * time.Second

			ctx := cmd.Context()
			needsBroker := opts.taskID == "" && opts.method != methodDirect
			app, err := c.open(ctx, appOptions{broker: needsBroker})
			if err != nil {
				return err
			}
			defer app.cleanup()
			return runTask(ctx, app, tc.taskType, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.method, "method", "m", methodDirect, "execution method: direct, sync or async")
	cmd.Flags().IntVarP(&interval, "interval", "i", 5, "seconds between status polls while waiting for results")
	cmd.Flags().StringVarP(&opts.taskID, "task-id", "t", "", "wait for a queued task and print its result")
	cmd.Flags().StringArrayVarP(&opts.organizations, "organization", "o", nil, "organization name to work on, repeatable (default all)")
	cmd.MarkFlagsMutuallyExclusive("task-id", "organization")
	return cmd
}

// runTask executes taskType with the chosen method and writes the outcome as
// JSON.
func runTask(ctx context.Context, app *application, taskType string, opts taskOptions, out io.Writer) error {
	if opts.taskID != "" {
		id, err := uuid.Parse(opts.taskID)
		if err != nil {
			return fmt.Errorf("invalid task id %q: %w", opts.taskID, err)
		}
		if _, err := app.tasks.Status(ctx, id); err != nil {
			return err
		}
		done, err := app.tasks.Wait(ctx, []uuid.UUID{id}, opts.interval)
		if err != nil {
			return err
		}
		return writeJSON(out, done[0])
	}

	filter := scanner.Filter{Organizations: opts.organizations}
	switch opts.method {
	case methodDirect:
		t, err := app.tasks.Apply(ctx, taskType, filter)
		if err != nil {
			return err
		}
		return writeJSON(out, t.Result)
	case methodSync, methodAsync:
		filters, err := scanner.Compose(ctx, app.stores.Organizations, filter)
		if err != nil {
			return err
		}
		if len(filters) == 0 {
			return fmt.Errorf("no organizations match %v", opts.organizations)
		}
		payloads := make([]any, len(filters))
		for i, f := range filters {
			payloads[i] = f
		}
		ids, err := app.tasks.SubmitGroup(ctx, taskType, payloads)
		if err != nil {
			return err
		}
		if opts.method == methodAsync {
			return writeJSON(out, map[string]any{"task_ids": ids})
		}
		done, err := app.tasks.Wait(ctx, ids, opts.interval)
		if err != nil {
			return err
		}
		task.SortByCreation(done)
		return writeJSON(out, done)
	default:
		return fmt.Errorf("unknown method %q: use direct, sync or async", opts.method)
	}
}

func newCheckDefaultRatingsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check-default-ratings",
		Short: "Give organizations without a rating a default rating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.open(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.cleanup()

			t, err := app.tasks.Apply(cmd.Context(), scanner.TypeDefaultRatings, scanner.Filter{})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), t.Result)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
