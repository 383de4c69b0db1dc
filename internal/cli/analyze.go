package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Show period totals, anomalies and alerts without sending email",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Reports.Preview(ctx)
			if err != nil {
				return fmt.Errorf("failed to analyze costs: %w", err)
			}
			return printReport(rep)
		},
	}
}

// printReport prints a built report's numbers; the HTML body is never printed
func printReport(rep *report.Report) error {
	if isStructured() {
		return printOutput(rep)
	}

	fmt.Printf("Subject: %s\n\n", rep.Subject)

	if ta := rep.Timeframes; ta != nil {
		fmt.Printf("Generated %s (%s, %.1f hours elapsed)\n\n",
			ta.GeneratedAt.Format("2006-01-02 15:04 MST"), ta.Timezone, ta.ElapsedHours)

		table := NewTable("PERIOD", "WINDOW", "TOTAL", "ACCOUNTS")
		for _, p := range ta.Periods {
			table.AddRow(string(p.Period), p.Window.String(), "$"+p.Total.StringFixed(2), fmt.Sprint(len(p.Accounts)))
		}
		table.Render()
		fmt.Println()
	}

	if an := rep.Analysis; an != nil {
		fmt.Printf("Comparison %s vs %s: $%s vs $%s (%+.1f%%)\n\n",
			an.CurrentWindow, an.BaselineWindow,
			an.TotalCurrent.StringFixed(2), an.TotalBaseline.StringFixed(2), an.TotalDeltaPercent)

		printAnomalies(rep, an.AllAnomalies())
	}

	if len(rep.Alerts) > 0 {
		table := NewTable("ALERT", "MESSAGE")
		for _, a := range rep.Alerts {
			table.AddRow(string(a.Kind), a.Message)
		}
		table.Render()
		fmt.Println()
	}

	for _, w := range rep.Warnings {
		fmt.Println("Warning:", w)
	}
	return nil
}

func printAnomalies(rep *report.Report, anomalies []cost.Anomaly) {
	if len(anomalies) == 0 {
		fmt.Println("No anomalies detected.")
		fmt.Println()
		return
	}

	table := NewTable("ACCOUNT", "SERVICE", "CURRENT", "EXPECTED", "CHANGE", "AI")
	for _, a := range anomalies {
		ai := ""
		if a.IsAIService {
			ai = "yes"
		}
		table.AddRow(
			rep.AccountName(a.AccountID),
			a.Service,
			"$"+a.Current.StringFixed(2),
			"$"+a.Baseline.StringFixed(2),
			fmt.Sprintf("%+.1f%%", a.DeltaPercent),
			ai,
		)
	}
	table.Render()
	fmt.Println()
}
