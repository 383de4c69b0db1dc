package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/costmonitor/internal/worker"
)

const shutdownTimeout = 2 * time.Minute

func newScheduleCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the report on SCHEDULE_CRON until interrupted",
		Long: `Run as a long-lived process. The report runs on SCHEDULE_CRON (six fields,
seconds first); overlapping runs are skipped. Prometheus metrics and a health
check are served on METRICS_ADDR. Run history older than HISTORY_RETENTION is
pruned after every run when DB_DRIVER is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var pruner worker.HistoryPruner
			if a.Runs != nil {
				pruner = a.Runs
			}

			scheduler := worker.NewReportScheduler(worker.SchedulerConfig{
				Spec:        a.Config.Schedule.Cron,
				MetricsAddr: a.Config.Schedule.MetricsAddr,
				Retention:   a.Config.Database.Retention,
			}, a.Reports, pruner, a.Logger)

			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			if next := scheduler.NextRun(); next != nil {
				fmt.Printf("Scheduler started; next run at %s\n", next.In(a.Location).Format(time.RFC1123))
			}

			if runNow {
				if err := scheduler.RunNow(); err != nil {
					return err
				}
			}

			<-ctx.Done()
			fmt.Println("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return scheduler.Stop(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "run the report once immediately after starting")

	return cmd
}
