package alert

import "github.com/pratik-mahalle/costmonitor/internal/domain/cost"

// Kind identifies why an alert needs immediate attention
type Kind string

const (
	KindCriticalAICost  Kind = "CRITICAL_AI_COST"
	KindExtremeIncrease Kind = "EXTREME_INCREASE"
)

// Alert is an anomaly that warrants immediate, not routine, attention
type Alert struct {
	Kind    Kind         `json:"type" yaml:"type"`
	Message string       `json:"message" yaml:"message"`
	Source  cost.Anomaly `json:"details" yaml:"details"`
}

// Fixed floors, independent of and stricter than the anomaly thresholds
const (
	// CriticalAIDeltaDollars is the AI-service increase that triggers CRITICAL_AI_COST
	CriticalAIDeltaDollars = 100
	// ExtremeIncreasePercent and ExtremeIncreaseMinCost gate EXTREME_INCREASE
	ExtremeIncreasePercent = 500
	ExtremeIncreaseMinCost = 10
)
