package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/costmonitor/internal/domain/alert"
	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
)

// Mode selects which windows a report compares
type Mode string

const (
	ModeTimeframes Mode = "timeframes"
	ModeRolling    Mode = "rolling"
)

// Report is a rendered cost report ready to send
type Report struct {
	Mode        Mode                    `json:"mode" yaml:"mode"`
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	Subject     string                  `json:"subject" yaml:"subject"`
	HTMLBody    string                  `json:"-" yaml:"-"`
	Headline    decimal.Decimal         `json:"headline_total" yaml:"headline_total"`
	Analysis    *cost.Analysis          `json:"analysis" yaml:"analysis"`
	Timeframes  *cost.TimeframeAnalysis `json:"timeframes,omitempty" yaml:"timeframes,omitempty"`
	Alerts      []alert.Alert           `json:"alerts" yaml:"alerts"`
	Accounts    []cost.Account          `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	// Warnings collects partial-data conditions surfaced while fetching
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// AccountName returns the organization name of id, or id itself
func (r *Report) AccountName(id string) string {
	for _, a := range r.Accounts {
		if a.ID == id && a.Name != "" {
			return a.Name
		}
	}
	return id
}

// Run is the persisted record of one report execution
type Run struct {
	ID           string          `json:"id" yaml:"id"`
	Trigger      Trigger         `json:"trigger" yaml:"trigger"`
	Mode         Mode            `json:"mode" yaml:"mode"`
	Status       RunStatus       `json:"status" yaml:"status"`
	Subject      string          `json:"subject,omitempty" yaml:"subject,omitempty"`
	TotalCost    decimal.Decimal `json:"total_cost" yaml:"total_cost"`
	AnomalyCount int             `json:"anomaly_count" yaml:"anomaly_count"`
	AlertCount   int             `json:"alert_count" yaml:"alert_count"`
	Recipients   int             `json:"recipients" yaml:"recipients"`
	MessageID    string          `json:"message_id,omitempty" yaml:"message_id,omitempty"`
	// Reason is the rejection code when the guard blocked the send
	Reason       string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ArchiveKey   string     `json:"archive_key,omitempty" yaml:"archive_key,omitempty"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms" yaml:"duration_ms"`
}

// Finish stamps the completion time and duration
func (r *Run) Finish(status RunStatus, at time.Time) {
	r.Status = status
	r.CompletedAt = &at
	r.DurationMs = at.Sub(r.StartedAt).Milliseconds()
}

// RunStatus is the outcome of a run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSent    RunStatus = "sent"
	RunStatusSkipped RunStatus = "skipped"
	RunStatusFailed  RunStatus = "failed"
)

// IsValid checks if the status is known
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusSent, RunStatusSkipped, RunStatusFailed:
		return true
	}
	return false
}

// Trigger records what started a run
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerLambda   Trigger = "lambda"
)

// Filter narrows run history queries
type Filter struct {
	Status RunStatus
	Since  *time.Time
}
