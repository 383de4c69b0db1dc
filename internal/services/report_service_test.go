package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/testutil"
)

var reportNow = time.Date(2024, 6, 11, 14, 30, 0, 0, time.UTC)

type serviceFixture struct {
	fetcher     *testutil.MockFetcher
	accounts    *testutil.MockAccountLister
	transmitter *testutil.MockTransmitter
	suppression *testutil.MockSuppressionChecker
	quota       *testutil.MockQuotaChecker
	runs        *testutil.MockRunRepository
	archiver    *testutil.MockArchiver
	guard       *EmailGuard
	service     *ReportService
}

func newServiceFixture(t *testing.T, mode report.Mode, costs map[cost.Period]map[string]map[string]float64) *serviceFixture {
	t.Helper()

	analyzer := newTestAnalyzer()
	renderer, err := NewReportRenderer(analyzer.IsAIService)
	if err != nil {
		t.Fatalf("NewReportRenderer() error = %v", err)
	}
	log := testutil.NewTestLogger()
	clock := testutil.FixedClock(reportNow)

	f := &serviceFixture{
		fetcher:     testutil.NewMockFetcher(costs),
		accounts:    &testutil.MockAccountLister{Accounts: []cost.Account{{ID: "123456789012", Name: "Production", Email: "prod@example.com"}}},
		transmitter: testutil.NewMockTransmitter(),
		suppression: testutil.NewMockSuppressionChecker(),
		quota:       &testutil.MockQuotaChecker{Quota: notification.Quota{Max24HourSend: 200}},
		runs:        testutil.NewMockRunRepository(),
		archiver:    testutil.NewMockArchiver(),
		guard:       NewEmailGuard(DefaultGuardConfig()),
	}

	sender := NewSafeSender(f.transmitter, f.suppression, f.quota, f.guard, DefaultQuotaSafetyRatio, log).
		WithClock(clock)

	f.service = NewReportService(ReportConfig{
		Mode:          mode,
		Location:      mustLoad(t, "US/Central"),
		Timezone:      "US/Central",
		From:          "costs@example.com",
		To:            []string{"ops@example.com", "finance@example.com"},
		ArchivePrefix: "reports/",
	}, ReportDeps{
		Fetcher:  f.fetcher,
		Accounts: f.accounts,
		Analyzer: analyzer,
		Renderer: renderer,
		Sender:   sender,
		Runs:     f.runs,
		Archiver: f.archiver,
	}, log).WithClock(clock)

	return f
}

func TestReportService_Run_Sent(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())

	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Status != report.RunStatusSent {
		t.Errorf("Status = %s, want %s", run.Status, report.RunStatusSent)
	}
	if run.MessageID != "msg-1" {
		t.Errorf("MessageID = %q, want msg-1", run.MessageID)
	}
	if run.Recipients != 2 {
		t.Errorf("Recipients = %d, want 2", run.Recipients)
	}
	if !run.TotalCost.Equal(testutil.Dec("135")) {
		t.Errorf("TotalCost = %s, want 135", run.TotalCost)
	}
	if run.Subject != "✅ AWS Cost Report - $135.00 Today" {
		t.Errorf("Subject = %q", run.Subject)
	}

	wantKey := "reports/2024/06/11/" + run.ID + ".html"
	if run.ArchiveKey != "mock://"+wantKey {
		t.Errorf("ArchiveKey = %q, want mock://%s", run.ArchiveKey, wantKey)
	}
	if _, ok := f.archiver.Objects[wantKey]; !ok {
		t.Error("rendered body was not archived")
	}

	stored, err := f.runs.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if stored.Status != report.RunStatusSent || stored.CompletedAt == nil {
		t.Errorf("stored run = %+v, want completed sent run", stored)
	}

	if len(f.fetcher.Calls) != 4 {
		t.Errorf("fetched %d periods, want 4", len(f.fetcher.Calls))
	}
	if w := f.fetcher.Windows[cost.PeriodTodaySoFar]; w.StartDate() != "2024-06-11" {
		t.Errorf("today window = %s, want local date 2024-06-11", w)
	}

	sent := f.transmitter.Sent[0]
	if !strings.Contains(sent.HTMLBody, "Production (123456789012)") {
		t.Error("body should label accounts with organization names")
	}
}

func TestReportService_Run_Anomaly(t *testing.T) {
	costs := testutil.SampleTimeframeCosts()
	costs[cost.PeriodTodaySoFar]["123456789012"]["Amazon EC2"] = 95
	f := newServiceFixture(t, report.ModeTimeframes, costs)

	run, err := f.service.Run(context.Background(), report.TriggerSchedule)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.AnomalyCount != 1 {
		t.Errorf("AnomalyCount = %d, want 1", run.AnomalyCount)
	}
	if !strings.HasPrefix(run.Subject, "⚠️ AWS Cost Alert - Anomalies Detected") {
		t.Errorf("Subject = %q", run.Subject)
	}
}

func TestReportService_Run_Rolling(t *testing.T) {
	costs := map[cost.Period]map[string]map[string]float64{
		cost.PeriodCurrent:  {"111111111111": {"Amazon Bedrock": 300}},
		cost.PeriodPrevious: {"111111111111": {"Amazon Bedrock": 20}},
	}
	f := newServiceFixture(t, report.ModeRolling, costs)

	run, err := f.service.Run(context.Background(), report.TriggerLambda)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.AlertCount != 2 {
		t.Errorf("AlertCount = %d, want critical and extreme alerts", run.AlertCount)
	}
	if !strings.HasPrefix(run.Subject, "🚨") {
		t.Errorf("Subject = %q, want alert subject", run.Subject)
	}
	w := f.fetcher.Windows[cost.PeriodCurrent]
	if w.StartDate() != "2024-06-10" || w.EndDate() != "2024-06-12" {
		t.Errorf("current window = %s", w)
	}
}

func TestReportService_Run_RejectedIsSkipped(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())

	if _, err := f.service.Run(context.Background(), report.TriggerCLI); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Same clock and data: identical content within the dedup window
	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err != nil {
		t.Fatalf("second Run() error = %v, want nil on rejection", err)
	}

	if run.Status != report.RunStatusSkipped {
		t.Errorf("Status = %s, want %s", run.Status, report.RunStatusSkipped)
	}
	if run.Reason != apperrors.ErrCodeDuplicate {
		t.Errorf("Reason = %q, want %s", run.Reason, apperrors.ErrCodeDuplicate)
	}
	if len(f.transmitter.Sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(f.transmitter.Sent))
	}
	if len(f.archiver.Objects) != 1 {
		t.Error("skipped runs should not be archived")
	}
}

func TestReportService_Run_QuotaRejection(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.quota.Quota = notification.Quota{Max24HourSend: 100, SentLast24Hours: 95}

	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Status != report.RunStatusSkipped || run.Reason != apperrors.ErrCodeQuotaExceeded {
		t.Errorf("run = %s/%s, want skipped/%s", run.Status, run.Reason, apperrors.ErrCodeQuotaExceeded)
	}
	if len(f.transmitter.Sent) != 0 {
		t.Error("no email should be sent, including the error email")
	}
}

func TestReportService_Run_FetchFailure(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.fetcher.FetchError = apperrors.CostExplorerError(errors.New("ThrottlingException"))

	run, err := f.service.Run(context.Background(), report.TriggerSchedule)

	if apperrors.KindOf(err) != apperrors.KindUpstream {
		t.Fatalf("Run() error = %v, want upstream error", err)
	}
	if run.Status != report.RunStatusFailed {
		t.Errorf("Status = %s, want %s", run.Status, report.RunStatusFailed)
	}
	if !strings.Contains(run.ErrorMessage, "ThrottlingException") {
		t.Errorf("ErrorMessage = %q", run.ErrorMessage)
	}

	if len(f.transmitter.Sent) != 1 {
		t.Fatalf("sent %d emails, want the error email", len(f.transmitter.Sent))
	}
	errEmail := f.transmitter.Sent[0]
	if errEmail.Subject != ErrorSubject {
		t.Errorf("Subject = %q, want %q", errEmail.Subject, ErrorSubject)
	}
	if errEmail.HTMLBody != "" || !strings.Contains(errEmail.TextBody, "ThrottlingException") {
		t.Errorf("error email should be plain text with the cause, got %+v", errEmail)
	}
	if n := len(f.guard.Records(reportNow)); n != 1 {
		t.Errorf("guard records = %d, want the error email counted", n)
	}
}

func TestReportService_Run_RepeatedFailureNotifiesOnce(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.fetcher.FetchError = apperrors.CostExplorerError(errors.New("ThrottlingException"))

	for i := 0; i < 3; i++ {
		if _, err := f.service.Run(context.Background(), report.TriggerSchedule); err == nil {
			t.Fatalf("run %d: error = nil, want upstream error", i+1)
		}
	}

	if len(f.transmitter.Sent) != 1 {
		t.Errorf("sent %d error emails, want 1 inside the dedup window", len(f.transmitter.Sent))
	}
}

func TestReportService_Run_FailureNoticeRespectsHourlyCap(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.fetcher.FetchError = apperrors.CostExplorerError(errors.New("ThrottlingException"))
	for i := 0; i < 10; i++ {
		f.guard.Record(string(rune('a'+i)), reportNow.Add(-time.Duration(i)*time.Minute))
	}

	run, err := f.service.Run(context.Background(), report.TriggerSchedule)

	if apperrors.KindOf(err) != apperrors.KindUpstream {
		t.Fatalf("Run() error = %v, want the upstream error, not the rejection", err)
	}
	if run.Status != report.RunStatusFailed {
		t.Errorf("Status = %s, want failed", run.Status)
	}
	if len(f.transmitter.Sent) != 0 {
		t.Error("error email should not be sent once the hourly cap is reached")
	}
}

func TestReportService_Run_RecipientsExcludeSuppressed(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.suppression.Suppressed["finance@example.com"] = true

	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Recipients != 1 {
		t.Errorf("Recipients = %d, want 1 after suppression filtering", run.Recipients)
	}
	if got := f.transmitter.Sent[0].To; len(got) != 1 || got[0] != "ops@example.com" {
		t.Errorf("To = %v, want only ops@example.com", got)
	}
}

func TestReportService_Run_AccountListFailure(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.accounts.ListError = apperrors.OrganizationsError(errors.New("AccessDenied"))

	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err == nil {
		t.Fatal("Run() error = nil, want organizations failure")
	}
	if run.Status != report.RunStatusFailed {
		t.Errorf("Status = %s, want failed", run.Status)
	}
	if len(f.fetcher.Calls) != 0 {
		t.Error("no costs should be fetched after the account listing failed")
	}
}

func TestReportService_Run_HistoryFailuresNotFatal(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.runs.CreateError = errors.New("disk full")
	f.runs.UpdateError = errors.New("disk full")
	f.archiver.ArchiveError = errors.New("bucket missing")

	run, err := f.service.Run(context.Background(), report.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Status != report.RunStatusSent {
		t.Errorf("Status = %s, want sent", run.Status)
	}
	if run.ArchiveKey != "" {
		t.Errorf("ArchiveKey = %q, want empty after archive failure", run.ArchiveKey)
	}
}

func TestReportService_Build_TruncationWarning(t *testing.T) {
	f := newServiceFixture(t, report.ModeTimeframes, testutil.SampleTimeframeCosts())
	f.fetcher.Truncated[cost.PeriodMonthToDate] = true

	rep, err := f.service.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "month_to_date") {
		t.Errorf("Warnings = %v, want one month_to_date warning", rep.Warnings)
	}
	if !strings.Contains(rep.HTMLBody, "may be incomplete") {
		t.Error("warning should be rendered into the body")
	}
	if len(f.transmitter.Sent) != 0 || len(f.runs.Runs) != 0 {
		t.Error("Preview() must not send or record")
	}
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 6, 11, 23, 30, 0, 0, time.FixedZone("CDT", -5*3600))

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "reports/", want: "reports/2024/06/12/run-1.html"},
		{prefix: "reports", want: "reports/2024/06/12/run-1.html"},
		{prefix: "", want: "2024/06/12/run-1.html"},
	}
	for _, tt := range tests {
		if got := ArchiveKey(tt.prefix, at, "run-1"); got != tt.want {
			t.Errorf("ArchiveKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
