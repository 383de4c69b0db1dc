package config

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EMAIL_TO", "recipient1@example.com, recipient2@example.com")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Email.To; len(got) != 2 || got[1] != "recipient2@example.com" {
		t.Errorf("Email.To = %v", got)
	}
	if cfg.Anomaly.ThresholdPercent != 50 || cfg.Anomaly.ThresholdDollars != 50 {
		t.Errorf("thresholds = %v/%v, want 50/50", cfg.Anomaly.ThresholdPercent, cfg.Anomaly.ThresholdDollars)
	}
	if cfg.Anomaly.AIServiceMultiplier != 0.5 {
		t.Errorf("AIServiceMultiplier = %v, want 0.5", cfg.Anomaly.AIServiceMultiplier)
	}
	if len(cfg.Anomaly.AIServices) != len(DefaultAIServices) {
		t.Errorf("AIServices = %v", cfg.Anomaly.AIServices)
	}
	if cfg.Email.MaxPerHour != 10 || cfg.Email.DedupWindow != 30*time.Minute || cfg.Email.RateWindow != time.Hour {
		t.Errorf("guard defaults = %d/%s/%s", cfg.Email.MaxPerHour, cfg.Email.DedupWindow, cfg.Email.RateWindow)
	}
	if cfg.AWS.MaxRetries != 1 || cfg.AWS.CostExplorerMaxPages != 10 {
		t.Errorf("aws defaults = retries %d pages %d", cfg.AWS.MaxRetries, cfg.AWS.CostExplorerMaxPages)
	}
	if cfg.Report.Mode != ModeTimeframes || cfg.Report.Timezone != "US/Central" {
		t.Errorf("report defaults = %s/%s", cfg.Report.Mode, cfg.Report.Timezone)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EMAIL_TO", "ops@example.com")
	t.Setenv("ANOMALY_THRESHOLD_PERCENT", "25")
	t.Setenv("AI_SERVICE_MULTIPLIER", "0.25")
	t.Setenv("AI_SERVICES", "Amazon Bedrock, Amazon Q")
	t.Setenv("EMAIL_DEDUP_WINDOW", "15m")
	t.Setenv("REPORT_MODE", "rolling")
	t.Setenv("COSTEXPLORER_MAX_PAGES", "not-a-number")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Anomaly.ThresholdPercent != 25 {
		t.Errorf("ThresholdPercent = %v, want 25", cfg.Anomaly.ThresholdPercent)
	}
	if cfg.Anomaly.AIServiceMultiplier != 0.25 {
		t.Errorf("AIServiceMultiplier = %v", cfg.Anomaly.AIServiceMultiplier)
	}
	if got := cfg.Anomaly.AIServices; len(got) != 2 || got[0] != "Amazon Bedrock" || got[1] != "Amazon Q" {
		t.Errorf("AIServices = %v", got)
	}
	if cfg.Email.DedupWindow != 15*time.Minute {
		t.Errorf("DedupWindow = %s", cfg.Email.DedupWindow)
	}
	if cfg.Report.Mode != ModeRolling {
		t.Errorf("Mode = %s", cfg.Report.Mode)
	}
	if cfg.AWS.CostExplorerMaxPages != 10 {
		t.Errorf("unparseable value should fall back to default, got %d", cfg.AWS.CostExplorerMaxPages)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "missing recipients",
			env:     map[string]string{},
			wantMsg: "EMAIL_TO",
		},
		{
			name:    "multiplier above one",
			env:     map[string]string{"EMAIL_TO": "a@b.com", "AI_SERVICE_MULTIPLIER": "1.5"},
			wantMsg: "AI_SERVICE_MULTIPLIER",
		},
		{
			name:    "unknown mode",
			env:     map[string]string{"EMAIL_TO": "a@b.com", "REPORT_MODE": "weekly"},
			wantMsg: "REPORT_MODE",
		},
		{
			name:    "too many retries",
			env:     map[string]string{"EMAIL_TO": "a@b.com", "AWS_MAX_RETRIES": "5"},
			wantMsg: "AWS_MAX_RETRIES",
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{"EMAIL_TO": "a@b.com", "DB_DRIVER": "postgres"},
			wantMsg: "DB_DSN",
		},
		{
			name:    "rate window shorter than dedup window",
			env:     map[string]string{"EMAIL_TO": "a@b.com", "EMAIL_RATE_WINDOW": "10m"},
			wantMsg: "EMAIL_RATE_WINDOW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMAIL_TO", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(viper.New())
			if err == nil {
				t.Fatal("Load() expected error")
			}
			var appErr *apperrors.AppError
			if !stderrors.As(err, &appErr) || appErr.Kind != apperrors.KindConfig {
				t.Errorf("Load() error = %v, want config AppError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want mention of %s", err.Error(), tt.wantMsg)
			}
		})
	}
}
