package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/metrics"
)

// ReportRunner runs one report cycle
type ReportRunner interface {
	Run(ctx context.Context, trigger report.Trigger) (*report.Run, error)
}

// HistoryPruner deletes run history older than a cutoff
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SchedulerConfig configures the report scheduler
type SchedulerConfig struct {
	// Spec is a six-field cron expression, seconds first
	Spec        string
	MetricsAddr string
	// Retention is applied after every run when a pruner is set
	Retention time.Duration
}

// ReportScheduler runs the report on a cron schedule. Overlapping ticks are skipped,
// so one slow run never stacks a second email behind it.
type ReportScheduler struct {
	cfg    SchedulerConfig
	runner ReportRunner
	pruner HistoryPruner
	logger *logger.Logger

	mu        sync.RWMutex
	scheduler *cron.Cron
	job       cron.Job
	entry     cron.EntryID
	lastRun   *report.Run
	server    *http.Server

	// manual tracks runs started by RunNow
	manual sync.WaitGroup
}

// NewReportScheduler creates a new report scheduler. pruner may be nil.
func NewReportScheduler(cfg SchedulerConfig, runner ReportRunner, pruner HistoryPruner, log *logger.Logger) *ReportScheduler {
	return &ReportScheduler{
		cfg:    cfg,
		runner: runner,
		pruner: pruner,
		logger: log,
	}
}

// ParseSpec validates a six-field cron expression
func ParseSpec(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Start schedules the report and, when MetricsAddr is set, serves /metrics and /healthz.
// It returns once scheduling is set up; cancel ctx and call Stop to shut down.
func (s *ReportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("scheduler is already running")
	}
	if _, err := ParseSpec(s.cfg.Spec); err != nil {
		return err
	}

	cl := cronLogger{log: s.logger}
	s.scheduler = cron.New(cron.WithSeconds(), cron.WithLogger(cl))
	// Ticks and RunNow share one wrapped job so they skip each other
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.RunOnce(ctx) }))

	entry, err := s.scheduler.AddJob(s.cfg.Spec, s.job)
	if err != nil {
		s.scheduler, s.job = nil, nil
		return fmt.Errorf("failed to schedule report: %w", err)
	}
	s.entry = entry

	if s.cfg.MetricsAddr != "" {
		s.server = &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           metrics.Router(s.healthy),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.ErrorWithErr(err, "Metrics server stopped")
			}
		}(s.server)
	}

	s.scheduler.Start()

	s.logger.WithFields(map[string]interface{}{
		"schedule":     s.cfg.Spec,
		"metrics_addr": s.cfg.MetricsAddr,
		"next_run":     s.scheduler.Entry(entry).Next,
	}).Info("Report scheduler started")

	return nil
}

// RunNow starts a report in the background. It is skipped if a scheduled run is in
// progress, and Stop waits for it.
func (s *ReportScheduler) RunNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return fmt.Errorf("scheduler is not running")
	}

	job := s.job
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		job.Run()
	}()
	return nil
}

// Stop waits for running reports to finish, then shuts down the metrics server
func (s *ReportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	scheduler, server := s.scheduler, s.server
	s.scheduler, s.server, s.job = nil, nil, nil
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-scheduler.Stop().Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for running report to finish")
	}

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
	}

	s.logger.Info("Report scheduler stopped")
	return nil
}

// RunOnce runs one scheduled report and prunes history. Errors are logged; the
// runner has already sent the error email.
func (s *ReportScheduler) RunOnce(ctx context.Context) {
	run, err := s.runner.Run(ctx, report.TriggerSchedule)
	if err != nil {
		s.logger.ErrorWithErr(err, "Scheduled report run failed")
	}
	if run != nil {
		s.mu.Lock()
		s.lastRun = run
		s.mu.Unlock()
	}

	s.prune(ctx)
}

func (s *ReportScheduler) prune(ctx context.Context) {
	if s.pruner == nil || s.cfg.Retention <= 0 {
		return
	}

	deleted, err := s.pruner.DeleteBefore(ctx, time.Now().Add(-s.cfg.Retention))
	if err != nil {
		s.logger.WarnWithErr(err, "Failed to prune run history")
		return
	}
	if deleted > 0 {
		s.logger.With("deleted", deleted).Info("Pruned run history")
	}
}

// LastRun returns the most recent run started by the scheduler, or nil
func (s *ReportScheduler) LastRun() *report.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// NextRun returns the next scheduled time, or nil when stopped
func (s *ReportScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.scheduler == nil {
		return nil
	}
	next := s.scheduler.Entry(s.entry).Next
	return &next
}

// healthy is false once the last run failed outright
func (s *ReportScheduler) healthy() bool {
	last := s.LastRun()
	return last == nil || last.Status != report.RunStatusFailed
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).ErrorWithErr(err, "cron: "+msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
