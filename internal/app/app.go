// Package app wires configuration into the report pipeline shared by the CLI and the
// Lambda handler.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/pratik-mahalle/costmonitor/internal/config"
	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
	"github.com/pratik-mahalle/costmonitor/internal/providers"
	"github.com/pratik-mahalle/costmonitor/internal/repository/postgres"
	"github.com/pratik-mahalle/costmonitor/internal/services"
	"github.com/pratik-mahalle/costmonitor/migrations"
)

// App holds the long-lived collaborators of one process. Keep a single App per
// process so the email guard's history carries across runs.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Location *time.Location
	Analyzer *services.CostAnalyzer
	Guard    *services.EmailGuard
	Reports  *services.ReportService
	// Runs is nil when run history is disabled
	Runs report.Repository

	db *sql.DB
}

// New builds the AWS clients, opens run history when configured and assembles the
// report service. No AWS call is made here.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	awsCfg, err := providers.LoadAWSConfig(ctx, providers.AWSCredentials{
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Region:          cfg.AWS.Region,
	}, cfg.AWS.MaxRetries)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: log}

	loc, ok := services.LoadTimezone(cfg.Report.Timezone)
	if !ok {
		log.With("timezone", cfg.Report.Timezone).Warn("Unknown timezone, falling back to UTC")
	}
	a.Location = loc

	if cfg.Database.Driver != postgres.DriverNone {
		if err := a.openHistory(cfg.Database); err != nil {
			return nil, err
		}
	}

	fetcher := providers.NewCostExplorerFetcher(
		costexplorer.NewFromConfig(providers.WithRegion(awsCfg, cfg.AWS.CostExplorerRegion)),
		cfg.AWS.CostExplorerMaxPages,
		log,
	)

	var accounts cost.AccountLister
	if cfg.AWS.ListAccounts {
		accounts = providers.NewOrganizationsLister(organizations.NewFromConfig(awsCfg))
	}

	var archiver report.Archiver
	if cfg.Report.ArchiveBucket != "" {
		archiver = providers.NewS3Archiver(s3.NewFromConfig(awsCfg), cfg.Report.ArchiveBucket)
	}

	mailer := providers.NewSESMailer(sesv2.NewFromConfig(awsCfg), cfg.AWS.SESRequestsPerSecond)

	a.Analyzer = services.NewCostAnalyzer(services.AnalyzerConfig{
		ThresholdPercent: cfg.Anomaly.ThresholdPercent,
		ThresholdDollars: cfg.Anomaly.ThresholdDollars,
		AIMultiplier:     cfg.Anomaly.AIServiceMultiplier,
		AIServices:       cfg.Anomaly.AIServices,
	})

	renderer, err := services.NewReportRenderer(a.Analyzer.IsAIService)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Guard = services.NewEmailGuard(services.GuardConfig{
		MaxPerHour:  cfg.Email.MaxPerHour,
		DedupWindow: cfg.Email.DedupWindow,
		RateWindow:  cfg.Email.RateWindow,
	})
	sender := services.NewSafeSender(mailer, mailer, mailer, a.Guard, cfg.Email.QuotaSafetyRatio, log)

	a.Reports = services.NewReportService(services.ReportConfig{
		Mode:          report.Mode(cfg.Report.Mode),
		Location:      loc,
		Timezone:      loc.String(),
		From:          cfg.Email.From,
		To:            cfg.Email.To,
		ArchivePrefix: cfg.Report.ArchivePrefix,
	}, services.ReportDeps{
		Fetcher:  fetcher,
		Accounts: accounts,
		Analyzer: a.Analyzer,
		Renderer: renderer,
		Sender:   sender,
		Runs:     a.Runs,
		Archiver: archiver,
	}, log)

	log.WithFields(map[string]interface{}{
		"mode":       cfg.Report.Mode,
		"timezone":   loc.String(),
		"recipients": len(cfg.Email.To),
		"history":    cfg.Database.Driver,
		"archive":    cfg.Report.ArchiveBucket != "",
	}).Debug("Cost monitor initialized")

	return a, nil
}

func (a *App) openHistory(cfg config.DatabaseConfig) error {
	db, err := postgres.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}

	applied, err := postgres.RunMigrations(db, migrations.FS())
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate run history: %w", err)
	}
	if applied > 0 {
		a.Logger.With("applied", applied).Info("Applied run history migrations")
	}

	a.db = db
	a.Runs = postgres.NewRunRepository(db)
	return nil
}

// Close releases the run history database
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
