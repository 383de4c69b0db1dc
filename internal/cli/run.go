package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

func newRunCmd() *cobra.Command {
	var dryRun bool
	var htmlPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the cost report and email it",
		Long: `Fetch costs, analyze them and send the report through the email guard.

A guard rejection (rate limit, duplicate, quota, no deliverable recipients) is not
an error: the run completes as skipped. Any other failure sends an error email and
exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if dryRun {
				rep, err := a.Reports.Preview(ctx)
				if err != nil {
					return fmt.Errorf("failed to build report: %w", err)
				}
				if htmlPath != "" {
					if err := os.WriteFile(htmlPath, []byte(rep.HTMLBody), 0o644); err != nil {
						return fmt.Errorf("failed to write report body: %w", err)
					}
					fmt.Fprintf(os.Stderr, "Report body written to %s\n", htmlPath)
				}
				return printReport(rep)
			}

			run, err := a.Reports.Run(ctx, report.TriggerCLI)
			if run != nil {
				if perr := printRuns(run); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the report without sending or recording it")
	cmd.Flags().StringVar(&htmlPath, "html", "", "with --dry-run, write the rendered email body to this file")

	return cmd
}
