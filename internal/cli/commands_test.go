package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pratik-mahalle/costmonitor/internal/config"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	"github.com/pratik-mahalle/costmonitor/internal/repository/postgres"
	"github.com/pratik-mahalle/costmonitor/migrations"
)

// setupCommand isolates the command from the host config and captures its output
func setupCommand(t *testing.T, env map[string]string) *bytes.Buffer {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("LOG_LEVEL", "error")
	for k, v := range env {
		t.Setenv(k, v)
	}

	buf := &bytes.Buffer{}
	stdout = buf
	t.Cleanup(func() {
		stdout = defaultStdout
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	return buf
}

var defaultStdout = stdout

// resetFlags restores every flag to its default; cobra keeps values between Execute calls
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func seedRuns(t *testing.T, path string, runs ...*report.Run) {
	t.Helper()

	db, err := postgres.New(config.DatabaseConfig{Driver: postgres.DriverSQLite, Path: path, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer db.Close()

	if _, err := postgres.RunMigrations(db, migrations.FS()); err != nil {
		t.Fatalf("migrate history: %v", err)
	}
	repo := postgres.NewRunRepository(db)
	for _, run := range runs {
		if err := repo.Create(context.Background(), run); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}
}

func TestHistoryListCommand_JSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	out := setupCommand(t, map[string]string{
		"EMAIL_TO":  "ops@example.com",
		"DB_DRIVER": "sqlite",
		"DB_PATH":   dbPath,
	})

	started := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	seedRuns(t, dbPath,
		&report.Run{
			ID:         "run-sent",
			Trigger:    report.TriggerSchedule,
			Mode:       report.ModeTimeframes,
			Status:     report.RunStatusSent,
			TotalCost:  decimal.RequireFromString("123.45"),
			Recipients: 2,
			MessageID:  "msg-1",
			StartedAt:  started,
		},
		&report.Run{
			ID:        "run-failed",
			Trigger:   report.TriggerSchedule,
			Mode:      report.ModeTimeframes,
			Status:    report.RunStatusFailed,
			StartedAt: started.Add(time.Minute),
		},
	)

	rootCmd.SetArgs([]string{"history", "list", "--status", "sent", "-o", "json"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var runs []report.Run
	if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
		t.Fatalf("output is not a JSON run list: %v\n%s", err, out.String())
	}
	if len(runs) != 1 || runs[0].ID != "run-sent" {
		t.Fatalf("runs = %+v, want only run-sent", runs)
	}
	if runs[0].Recipients != 2 || !runs[0].TotalCost.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("run = %+v, want the stored recipients and total", runs[0])
	}
}

func TestHistoryListCommand_Table(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	out := setupCommand(t, map[string]string{
		"EMAIL_TO":  "ops@example.com",
		"DB_DRIVER": "sqlite",
		"DB_PATH":   dbPath,
	})
	seedRuns(t, dbPath, &report.Run{
		ID:        "run-skipped",
		Trigger:   report.TriggerSchedule,
		Mode:      report.ModeRolling,
		Status:    report.RunStatusSkipped,
		Reason:    "DUPLICATE",
		StartedAt: time.Now().UTC(),
	})

	rootCmd.SetArgs([]string{"history", "list"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"run-skipped", "[~] skipped", "DUPLICATE", "Showing 1 of 1 run(s)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestHistoryListCommand_Disabled(t *testing.T) {
	setupCommand(t, map[string]string{
		"EMAIL_TO":  "ops@example.com",
		"DB_DRIVER": "none",
	})

	rootCmd.SetArgs([]string{"history", "list"})
	if err := rootCmd.Execute(); !errors.Is(err, errHistoryDisabled) {
		t.Errorf("Execute() error = %v, want errHistoryDisabled", err)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantErr  bool
		wantText string
	}{
		{
			name:     "valid",
			env:      map[string]string{"EMAIL_TO": "ops@example.com"},
			wantText: "",
		},
		{
			name:     "missing recipients",
			env:      map[string]string{"EMAIL_TO": ""},
			wantErr:  true,
			wantText: "EMAIL_TO",
		},
		{
			name:     "bad report mode",
			env:      map[string]string{"EMAIL_TO": "ops@example.com", "REPORT_MODE": "weekly"},
			wantErr:  true,
			wantText: "REPORT_MODE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := setupCommand(t, tt.env)

			rootCmd.SetArgs([]string{"config", "validate"})
			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantText) {
				t.Errorf("output missing %q:\n%s", tt.wantText, out.String())
			}
		})
	}
}
