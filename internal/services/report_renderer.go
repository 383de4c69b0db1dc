package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/costmonitor/internal/domain/alert"
	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrorSubject is the subject of the failure notification
const ErrorSubject = "❌ AWS Cost Monitor - Error Occurred"

// rollingIncreaseSubjectPercent is the total change above which rolling subjects call out the increase
const rollingIncreaseSubjectPercent = 20

// negligible hides rows and accounts below one cent
var negligible = decimal.NewFromFloat(0.01)

// ReportRenderer builds email subjects and HTML bodies
type ReportRenderer struct {
	tmpl        *template.Template
	isAIService func(string) bool
}

// NewReportRenderer parses the embedded templates. isAIService marks highlighted rows.
func NewReportRenderer(isAIService func(string) bool) (*ReportRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report templates: %w", err)
	}
	if isAIService == nil {
		isAIService = func(string) bool { return false }
	}
	return &ReportRenderer{tmpl: tmpl, isAIService: isAIService}, nil
}

// TimeframeSubject returns the subject of a multi-period report
func TimeframeSubject(ta *cost.TimeframeAnalysis, alerts []alert.Alert) string {
	today := money(ta.PeriodTotal(cost.PeriodTodaySoFar))
	switch {
	case len(alerts) > 0:
		return fmt.Sprintf("🚨 AWS Cost Alert - Immediate Action Required - %s Today", today)
	case ta.Comparison != nil && ta.Comparison.HasAnomalies():
		return fmt.Sprintf("⚠️ AWS Cost Alert - Anomalies Detected - %s Today", today)
	default:
		return fmt.Sprintf("✅ AWS Cost Report - %s Today", today)
	}
}

// RollingSubject returns the subject of a rolling two-day report
func RollingSubject(analysis *cost.Analysis, alerts []alert.Alert) string {
	total := money(analysis.TotalCurrent)
	switch {
	case len(alerts) > 0:
		return fmt.Sprintf("🚨 AWS Cost Alert - Immediate Action Required - %s", total)
	case analysis.TotalDeltaPercent > rollingIncreaseSubjectPercent:
		return fmt.Sprintf("⚠️ AWS Cost Report - Costs Up %.1f%% - %s", analysis.TotalDeltaPercent, total)
	default:
		return fmt.Sprintf("✅ AWS Cost Report - %s Daily", total)
	}
}

// ErrorBody returns the plain-text failure notification
func ErrorBody(err error) string {
	return fmt.Sprintf("An error occurred in the AWS Cost Monitor:\n\n%v", err)
}

type metricBox struct {
	Label  string
	Total  string
	Window string
}

type deltaView struct {
	Current      string
	Baseline     string
	Delta        string
	DeltaPercent string
	Increase     bool
}

type serviceRow struct {
	Service string
	AI      bool
	deltaView
}

type accountSection struct {
	Label        string
	Total        string
	DeltaPercent string
	Increase     bool
	Rows         []serviceRow
}

type accountTotalRow struct {
	Label string
	Total string
}

type reportView struct {
	Alerts          []alert.Alert
	Anomalies       []string
	Warnings        []string
	Comparison      deltaView
	Accounts        []accountSection
	CurrentHeading  string
	BaselineHeading string

	// Multi-period report
	Date          string
	Time          string
	Timezone      string
	Boxes         []metricBox
	MonthAccounts []accountTotalRow

	// Rolling report
	Start        string
	End          string
	StartDisplay string
	EndDisplay   string
}

// RenderTimeframes renders the multi-period report body. loc formats the header clock.
func (r *ReportRenderer) RenderTimeframes(rep *report.Report, loc *time.Location) (string, error) {
	ta := rep.Timeframes
	if ta == nil {
		return "", fmt.Errorf("report has no timeframe analysis")
	}

	local := ta.GeneratedAt.In(loc)
	view := reportView{
		Alerts:          rep.Alerts,
		Warnings:        rep.Warnings,
		Date:            local.Format("January 2, 2006"),
		Time:            local.Format("03:04 PM MST"),
		Timezone:        ta.Timezone,
		CurrentHeading:  "Today So Far",
		BaselineHeading: "Expected (Prorated)",
	}

	for _, p := range ta.Periods {
		view.Boxes = append(view.Boxes, metricBox{
			Label:  periodLabel(p, ta.ElapsedHours),
			Total:  money(p.Total),
			Window: p.Window.String(),
		})
	}

	if mtd := ta.Period(cost.PeriodMonthToDate); mtd != nil {
		for _, a := range mtd.Accounts {
			if a.Total.LessThan(negligible) {
				continue
			}
			view.MonthAccounts = append(view.MonthAccounts, accountTotalRow{
				Label: accountLabel(rep, a.AccountID),
				Total: money(a.Total),
			})
		}
	}

	if ta.Comparison != nil {
		r.fillComparison(&view, rep, ta.Comparison)
	}

	return r.execute("timeframes", view)
}

// RenderRolling renders the rolling two-day report body
func (r *ReportRenderer) RenderRolling(rep *report.Report) (string, error) {
	an := rep.Analysis
	if an == nil {
		return "", fmt.Errorf("report has no analysis")
	}

	view := reportView{
		Alerts:          rep.Alerts,
		Warnings:        rep.Warnings,
		Start:           an.CurrentWindow.StartDate(),
		End:             an.CurrentWindow.EndDate(),
		StartDisplay:    an.CurrentWindow.Start.Format("Jan 02, 2006"),
		EndDisplay:      an.CurrentWindow.End.Format("Jan 02, 2006"),
		CurrentHeading:  "Current Cost",
		BaselineHeading: "Previous Cost",
	}
	r.fillComparison(&view, rep, an)

	return r.execute("rolling", view)
}

func (r *ReportRenderer) fillComparison(view *reportView, rep *report.Report, an *cost.Analysis) {
	view.Comparison = newDeltaView(an.TotalCurrent, an.TotalBaseline, an.TotalDelta, an.TotalDeltaPercent)

	for _, a := range an.AllAnomalies() {
		view.Anomalies = append(view.Anomalies, fmt.Sprintf("%s in account %s: %s vs %s expected (%s)",
			a.Service, accountLabel(rep, a.AccountID), money(a.Current), money(a.Baseline), signedPercent(a.DeltaPercent)))
	}

	accounts := append([]cost.AccountAnalysis(nil), an.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Current.GreaterThan(accounts[j].Current)
	})

	for _, acct := range accounts {
		if acct.Current.LessThan(negligible) {
			continue
		}
		section := accountSection{
			Label:        accountLabel(rep, acct.AccountID),
			Total:        money(acct.Current),
			DeltaPercent: signedPercent(acct.DeltaPercent),
			Increase:     acct.Delta.IsPositive(),
		}

		services := append([]cost.ServiceDelta(nil), acct.Services...)
		sort.SliceStable(services, func(i, j int) bool {
			return services[i].Current.GreaterThan(services[j].Current)
		})
		for _, s := range services {
			if s.Current.LessThan(negligible) {
				continue
			}
			section.Rows = append(section.Rows, serviceRow{
				Service:   s.Service,
				AI:        r.isAIService(s.Service),
				deltaView: newDeltaView(s.Current, s.Baseline, s.Delta, s.DeltaPercent),
			})
		}
		view.Accounts = append(view.Accounts, section)
	}
}

func (r *ReportRenderer) execute(name string, view reportView) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("failed to render %s report: %w", name, err)
	}
	return buf.String(), nil
}

func newDeltaView(current, baseline, delta decimal.Decimal, pct float64) deltaView {
	sign := ""
	if delta.IsPositive() {
		sign = "+"
	}
	return deltaView{
		Current:      money(current),
		Baseline:     money(baseline),
		Delta:        sign + money(delta),
		DeltaPercent: signedPercent(pct),
		Increase:     delta.IsPositive(),
	}
}

func periodLabel(p cost.PeriodSummary, elapsedHours float64) string {
	switch p.Period {
	case cost.PeriodTodaySoFar:
		return fmt.Sprintf("Today (%.1f hours)", elapsedHours)
	case cost.PeriodYesterdayFull:
		return "Yesterday (Full Day)"
	case cost.PeriodMonthToDate:
		return "Month to Date"
	case cost.PeriodPreviousMonthFull:
		return fmt.Sprintf("%s (Full Month)", p.Window.Start.Month())
	default:
		return string(p.Period)
	}
}

func accountLabel(rep *report.Report, id string) string {
	if name := rep.AccountName(id); name != id {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	return id
}

// money formats an amount as $1234.56. Negative amounts render as -$12.00.
func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func signedPercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}
