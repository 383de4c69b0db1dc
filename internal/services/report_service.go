package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/costmonitor/internal/domain/alert"
	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/metrics"
)

// ReportConfig controls what a run fetches and where it sends the result
type ReportConfig struct {
	Mode     report.Mode
	Location *time.Location
	// Timezone is the configured name, shown in the report footer
	Timezone      string
	From          string
	To            []string
	ArchivePrefix string
}

// ReportDeps are the collaborators of a ReportService. Accounts, Runs and Archiver
// are optional.
type ReportDeps struct {
	Fetcher  cost.Fetcher
	Accounts cost.AccountLister
	Analyzer *CostAnalyzer
	Renderer *ReportRenderer
	Sender   *SafeSender
	Runs     report.Repository
	Archiver report.Archiver
}

// ReportService runs one fetch, analyze, classify, render and send cycle
type ReportService struct {
	cfg    ReportConfig
	deps   ReportDeps
	now    func() time.Time
	logger *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(cfg ReportConfig, deps ReportDeps, log *logger.Logger) *ReportService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Mode == "" {
		cfg.Mode = report.ModeTimeframes
	}
	return &ReportService{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		logger: log,
	}
}

// WithClock replaces the clock used for date ranges and run timestamps
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// Run builds and sends the report. Guard rejections complete the run as skipped with no
// error. Any other failure triggers a best-effort error email and is returned.
func (s *ReportService) Run(ctx context.Context, trigger report.Trigger) (*report.Run, error) {
	run := &report.Run{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Mode:      s.cfg.Mode,
		Status:    report.RunStatusRunning,
		StartedAt: s.now(),
	}
	log := s.logger.WithRun(run.ID)
	log.WithFields(map[string]interface{}{
		"trigger": trigger,
		"mode":    s.cfg.Mode,
	}).Info("Starting cost report run")

	s.createRun(ctx, log, run)

	rep, err := s.Build(ctx)
	if err != nil {
		return s.fail(ctx, log, run, err)
	}

	run.Subject = rep.Subject
	run.TotalCost = rep.Headline
	run.AlertCount = len(rep.Alerts)
	if rep.Analysis != nil {
		run.AnomalyCount = len(rep.Analysis.Anomalies) + len(rep.Analysis.AIAnomalies)
	}

	receipt, err := s.deps.Sender.SafeSend(ctx, notification.Email{
		From:     s.cfg.From,
		To:       s.cfg.To,
		Subject:  rep.Subject,
		HTMLBody: rep.HTMLBody,
	})
	switch {
	case apperrors.IsRejection(err):
		run.Reason = apperrors.CodeOf(err)
		log.With("reason", run.Reason).Warn("Report not sent, run completed without email")
		return s.finish(ctx, log, run, report.RunStatusSkipped), nil
	case err != nil:
		return s.fail(ctx, log, run, err)
	}

	run.MessageID = receipt.MessageID
	run.Recipients = len(receipt.Recipients)
	run.ArchiveKey = s.archive(ctx, log, run, rep)

	return s.finish(ctx, log, run, report.RunStatusSent), nil
}

// Preview builds the report without sending or recording it
func (s *ReportService) Preview(ctx context.Context) (*report.Report, error) {
	return s.Build(ctx)
}

// Build fetches snapshots for the configured mode and renders the report
func (s *ReportService) Build(ctx context.Context) (*report.Report, error) {
	now := s.now()

	accounts, err := s.listAccounts(ctx)
	if err != nil {
		return nil, err
	}

	rep := &report.Report{
		Mode:        s.cfg.Mode,
		GeneratedAt: now,
		Accounts:    accounts,
	}

	switch s.cfg.Mode {
	case report.ModeRolling:
		err = s.buildRolling(ctx, rep, now)
	default:
		err = s.buildTimeframes(ctx, rep, now)
	}
	if err != nil {
		return nil, err
	}

	s.recordAnalysis(rep.Analysis, rep.Alerts)
	return rep, nil
}

func (s *ReportService) buildTimeframes(ctx context.Context, rep *report.Report, now time.Time) error {
	ranges := TimeframeRanges(now, s.cfg.Location)

	snapshots := make(map[cost.Period]*cost.Snapshot, len(ranges))
	for _, period := range cost.TimeframePeriods {
		snapshot, err := s.fetch(ctx, rep, period, ranges[period])
		if err != nil {
			return err
		}
		snapshots[period] = snapshot
	}

	ta := s.deps.Analyzer.AnalyzeTimeframes(snapshots, ElapsedHours(now, s.cfg.Location), now, s.cfg.Timezone)

	rep.Timeframes = ta
	rep.Analysis = ta.Comparison
	rep.Alerts = Classify(ta.Comparison)
	rep.Headline = ta.PeriodTotal(cost.PeriodTodaySoFar)
	rep.Subject = TimeframeSubject(ta, rep.Alerts)

	body, err := s.deps.Renderer.RenderTimeframes(rep, s.cfg.Location)
	if err != nil {
		return apperrors.Internal("Failed to render report", err)
	}
	rep.HTMLBody = body
	return nil
}

func (s *ReportService) buildRolling(ctx context.Context, rep *report.Report, now time.Time) error {
	ranges := RollingRanges(now, s.cfg.Location)

	current, err := s.fetch(ctx, rep, cost.PeriodCurrent, ranges[cost.PeriodCurrent])
	if err != nil {
		return err
	}
	previous, err := s.fetch(ctx, rep, cost.PeriodPrevious, ranges[cost.PeriodPrevious])
	if err != nil {
		return err
	}

	analysis := s.deps.Analyzer.Compare(current, previous)

	rep.Analysis = analysis
	rep.Alerts = Classify(analysis)
	rep.Headline = analysis.TotalCurrent
	rep.Subject = RollingSubject(analysis, rep.Alerts)

	body, err := s.deps.Renderer.RenderRolling(rep)
	if err != nil {
		return apperrors.Internal("Failed to render report", err)
	}
	rep.HTMLBody = body
	return nil
}

func (s *ReportService) fetch(ctx context.Context, rep *report.Report, period cost.Period, window cost.DateRange) (*cost.Snapshot, error) {
	snapshot, err := s.deps.Fetcher.FetchSnapshot(ctx, period, window)
	if err != nil {
		return nil, err
	}

	if snapshot.Truncated() {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("Cost data for %s (%s) may be incomplete: result page limit reached.", period, window))
	}
	metrics.SetPeriodCost(string(period), snapshot.Total().InexactFloat64())

	s.logger.WithFields(map[string]interface{}{
		"period":  period,
		"window":  window.String(),
		"entries": snapshot.Len(),
	}).Debug("Fetched cost snapshot")

	return snapshot, nil
}

func (s *ReportService) listAccounts(ctx context.Context) ([]cost.Account, error) {
	if s.deps.Accounts == nil {
		return nil, nil
	}
	accounts, err := s.deps.Accounts.ListActiveAccounts(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.With("accounts", len(accounts)).Debug("Listed organization accounts")
	return accounts, nil
}

func (s *ReportService) recordAnalysis(analysis *cost.Analysis, alerts []alert.Alert) {
	if analysis != nil {
		metrics.RecordAnomalies("general", len(analysis.Anomalies))
		metrics.RecordAnomalies("ai", len(analysis.AIAnomalies))
	}
	for _, a := range alerts {
		metrics.RecordAlert(string(a.Kind))
	}
}

// fail records the failure, sends the error email and returns err unchanged
func (s *ReportService) fail(ctx context.Context, log *logger.Logger, run *report.Run, err error) (*report.Run, error) {
	log.WithFields(map[string]interface{}{
		"kind": apperrors.KindOf(err),
		"code": apperrors.CodeOf(err),
	}).ErrorWithErr(err, "Cost report run failed")

	run.ErrorMessage = err.Error()
	s.notifyFailure(ctx, log, err)
	return s.finish(ctx, log, run, report.RunStatusFailed), err
}

// notifyFailure sends a plain-text error email as a guarded notice, so a run that keeps
// failing is bounded by the hourly cap and repeats of the same error are deduplicated.
// Its own failure or rejection is logged and dropped.
func (s *ReportService) notifyFailure(ctx context.Context, log *logger.Logger, cause error) {
	_, err := s.deps.Sender.SendNotice(ctx, notification.Email{
		From:     s.cfg.From,
		To:       s.cfg.To,
		Subject:  ErrorSubject,
		TextBody: ErrorBody(cause),
	})
	switch {
	case apperrors.IsRejection(err):
		log.With("reason", apperrors.CodeOf(err)).Warn("Error email not sent")
	case err != nil:
		log.WarnWithErr(err, "Failed to send error email")
	default:
		metrics.RecordEmail("error_notification")
	}
}

// archive stores the rendered body. Failures are logged; the report was already sent.
func (s *ReportService) archive(ctx context.Context, log *logger.Logger, run *report.Run, rep *report.Report) string {
	if s.deps.Archiver == nil {
		return ""
	}

	key := ArchiveKey(s.cfg.ArchivePrefix, run.StartedAt, run.ID)
	location, err := s.deps.Archiver.Archive(ctx, key, []byte(rep.HTMLBody))
	if err != nil {
		log.WarnWithErr(apperrors.ArchiveFailed(err), "Failed to archive report")
		return ""
	}
	return location
}

// ArchiveKey returns prefix/YYYY/MM/DD/<run id>.html
func ArchiveKey(prefix string, at time.Time, runID string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	key := fmt.Sprintf("%s/%s.html", at.UTC().Format("2006/01/02"), runID)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func (s *ReportService) createRun(ctx context.Context, log *logger.Logger, run *report.Run) {
	if s.deps.Runs == nil {
		return
	}
	if err := s.deps.Runs.Create(ctx, run); err != nil {
		log.WarnWithErr(err, "Failed to record run start")
	}
}

func (s *ReportService) finish(ctx context.Context, log *logger.Logger, run *report.Run, status report.RunStatus) *report.Run {
	run.Finish(status, s.now())
	metrics.RecordReportRun(string(status), time.Duration(run.DurationMs)*time.Millisecond)

	if s.deps.Runs != nil {
		if err := s.deps.Runs.Update(ctx, run); err != nil {
			log.WarnWithErr(err, "Failed to record run result")
		}
	}

	log.WithFields(map[string]interface{}{
		"status":      status,
		"duration_ms": run.DurationMs,
		"alerts":      run.AlertCount,
		"anomalies":   run.AnomalyCount,
	}).Info("Cost report run finished")

	return run
}
