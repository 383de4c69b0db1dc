package cost

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceDelta compares one (account, service) pair across two snapshots
type ServiceDelta struct {
	AccountID    string          `json:"account_id" yaml:"account_id"`
	Service      string          `json:"service" yaml:"service"`
	Current      decimal.Decimal `json:"current" yaml:"current"`
	Baseline     decimal.Decimal `json:"baseline" yaml:"baseline"`
	Delta        decimal.Decimal `json:"delta" yaml:"delta"`
	DeltaPercent float64         `json:"delta_percent" yaml:"delta_percent"`
	IsAIService  bool            `json:"is_ai_service" yaml:"is_ai_service"`
}

// Anomaly is a ServiceDelta that exceeded both effective thresholds
type Anomaly struct {
	ServiceDelta     `yaml:",inline"`
	ThresholdPercent float64         `json:"threshold_percent" yaml:"threshold_percent"`
	ThresholdDollars decimal.Decimal `json:"threshold_dollars" yaml:"threshold_dollars"`
}

// AccountAnalysis is the per-account breakdown of a comparison
type AccountAnalysis struct {
	AccountID    string          `json:"account_id" yaml:"account_id"`
	Current      decimal.Decimal `json:"current" yaml:"current"`
	Baseline     decimal.Decimal `json:"baseline" yaml:"baseline"`
	Delta        decimal.Decimal `json:"delta" yaml:"delta"`
	DeltaPercent float64         `json:"delta_percent" yaml:"delta_percent"`
	Services     []ServiceDelta  `json:"services" yaml:"services"`
}

// Analysis is the result of comparing a current snapshot against a baseline
type Analysis struct {
	CurrentWindow     DateRange         `json:"current_window" yaml:"current_window"`
	BaselineWindow    DateRange         `json:"baseline_window" yaml:"baseline_window"`
	TotalCurrent      decimal.Decimal   `json:"total_current" yaml:"total_current"`
	TotalBaseline     decimal.Decimal   `json:"total_baseline" yaml:"total_baseline"`
	TotalDelta        decimal.Decimal   `json:"total_delta" yaml:"total_delta"`
	TotalDeltaPercent float64           `json:"total_delta_percent" yaml:"total_delta_percent"`
	Accounts          []AccountAnalysis `json:"accounts" yaml:"accounts"`
	Anomalies         []Anomaly         `json:"anomalies" yaml:"anomalies"`
	AIAnomalies       []Anomaly         `json:"ai_anomalies" yaml:"ai_anomalies"`
	// ProrationFraction is 1 for full-window comparisons
	ProrationFraction float64 `json:"proration_fraction" yaml:"proration_fraction"`
}

// Account returns the breakdown for id, or nil
func (a *Analysis) Account(id string) *AccountAnalysis {
	for i := range a.Accounts {
		if a.Accounts[i].AccountID == id {
			return &a.Accounts[i]
		}
	}
	return nil
}

// AllAnomalies returns general anomalies followed by AI anomalies
func (a *Analysis) AllAnomalies() []Anomaly {
	all := make([]Anomaly, 0, len(a.Anomalies)+len(a.AIAnomalies))
	all = append(all, a.Anomalies...)
	return append(all, a.AIAnomalies...)
}

// HasAnomalies reports whether any anomaly was found
func (a *Analysis) HasAnomalies() bool {
	return len(a.Anomalies) > 0 || len(a.AIAnomalies) > 0
}

// AccountTotal is one account's spend inside a period summary
type AccountTotal struct {
	AccountID string          `json:"account_id" yaml:"account_id"`
	Total     decimal.Decimal `json:"total" yaml:"total"`
}

// PeriodSummary is the total spend of one fetched window
type PeriodSummary struct {
	Period   Period          `json:"period" yaml:"period"`
	Window   DateRange       `json:"window" yaml:"window"`
	Total    decimal.Decimal `json:"total" yaml:"total"`
	Accounts []AccountTotal  `json:"accounts" yaml:"accounts"`
}

// TimeframeAnalysis is the multi-period report: four period summaries plus the
// today-so-far versus prorated-yesterday comparison.
type TimeframeAnalysis struct {
	GeneratedAt  time.Time       `json:"generated_at" yaml:"generated_at"`
	Timezone     string          `json:"timezone" yaml:"timezone"`
	ElapsedHours float64         `json:"elapsed_hours" yaml:"elapsed_hours"`
	Periods      []PeriodSummary `json:"periods" yaml:"periods"`
	Comparison   *Analysis       `json:"comparison" yaml:"comparison"`
}

// Period returns the summary for p, or nil
func (t *TimeframeAnalysis) Period(p Period) *PeriodSummary {
	for i := range t.Periods {
		if t.Periods[i].Period == p {
			return &t.Periods[i]
		}
	}
	return nil
}

// PeriodTotal returns the total of p, or zero
func (t *TimeframeAnalysis) PeriodTotal(p Period) decimal.Decimal {
	if s := t.Period(p); s != nil {
		return s.Total
	}
	return decimal.Zero
}
