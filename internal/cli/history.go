package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/costmonitor/internal/app"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

var errHistoryDisabled = errors.New("run history is disabled; set DB_DRIVER to sqlite or postgres")

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune report run history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		status string
		since  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List report runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := report.Filter{Status: report.RunStatus(status)}
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q: use running, sent, skipped or failed", status)
			}
			if since != "" {
				d, err := parseSince(since)
				if err != nil {
					return err
				}
				t := time.Now().Add(-d)
				filter.Since = &t
			}

			ctx, stop := commandContext()
			defer stop()

			a, err := historyApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, total, err := a.Runs.List(ctx, filter, limit, offset)
			if err != nil {
				return err
			}

			if err := printRuns(runs...); err != nil {
				return err
			}
			if !isStructured() {
				fmt.Fprintf(stdout, "\nShowing %d of %d run(s)\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status: running, sent, skipped, failed")
	cmd.Flags().StringVar(&since, "since", "", "only runs started within this window, e.g. 24h or 7d")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one report run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()

			a, err := historyApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Runs.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if isStructured() {
				return printOutput(run)
			}

			fmt.Printf("ID:          %s\n", run.ID)
			fmt.Printf("Status:      %s\n", formatStatus(string(run.Status)))
			fmt.Printf("Trigger:     %s\n", run.Trigger)
			fmt.Printf("Mode:        %s\n", run.Mode)
			fmt.Printf("Started:     %s\n", run.StartedAt.Format(time.RFC3339))
			if run.CompletedAt != nil {
				fmt.Printf("Completed:   %s (%dms)\n", run.CompletedAt.Format(time.RFC3339), run.DurationMs)
			}
			if run.Subject != "" {
				fmt.Printf("Subject:     %s\n", run.Subject)
			}
			fmt.Printf("Total:       $%s\n", run.TotalCost.StringFixed(2))
			fmt.Printf("Anomalies:   %d\n", run.AnomalyCount)
			fmt.Printf("Alerts:      %d\n", run.AlertCount)
			fmt.Printf("Recipients:  %d\n", run.Recipients)
			if run.MessageID != "" {
				fmt.Printf("Message ID:  %s\n", run.MessageID)
			}
			if run.Reason != "" {
				fmt.Printf("Reason:      %s\n", run.Reason)
			}
			if run.ErrorMessage != "" {
				fmt.Printf("Error:       %s\n", run.ErrorMessage)
			}
			if run.ArchiveKey != "" {
				fmt.Printf("Archive:     %s\n", run.ArchiveKey)
			}
			return nil
		},
	}
}

func newHistoryPruneCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than HISTORY_RETENTION or --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()

			a, err := historyApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			retention := a.Config.Database.Retention
			if olderThan != "" {
				if retention, err = parseSince(olderThan); err != nil {
					return err
				}
			}

			deleted, err := a.Runs.DeleteBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}

			fmt.Printf("Deleted %d run(s) older than %s\n", deleted, retention)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "age cutoff, e.g. 720h or 30d (default HISTORY_RETENTION)")

	return cmd
}

// historyApp builds the app and fails when run history is not configured
func historyApp(ctx context.Context) (*app.App, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if a.Runs == nil {
		_ = a.Close()
		return nil, errHistoryDisabled
	}
	return a, nil
}

// parseSince accepts a Go duration or a whole number of days such as "7d"
func parseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
