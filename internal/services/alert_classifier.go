package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/costmonitor/internal/domain/alert"
	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
)

var (
	criticalAIDelta        = decimal.NewFromInt(alert.CriticalAIDeltaDollars)
	extremeIncreaseMinCost = decimal.NewFromInt(alert.ExtremeIncreaseMinCost)
)

// Classify picks the anomalies that need immediate attention. CRITICAL_AI_COST alerts
// come first, then EXTREME_INCREASE over general and AI anomalies, each in analyzer order.
func Classify(analysis *cost.Analysis) []alert.Alert {
	alerts := []alert.Alert{}
	if analysis == nil {
		return alerts
	}

	for _, a := range analysis.AIAnomalies {
		if a.Delta.GreaterThan(criticalAIDelta) {
			alerts = append(alerts, alert.Alert{
				Kind: alert.KindCriticalAICost,
				Message: fmt.Sprintf("CRITICAL: %s costs increased by $%s (%.1f%%)",
					a.Service, a.Delta.StringFixed(2), a.DeltaPercent),
				Source: a,
			})
		}
	}

	for _, a := range analysis.AllAnomalies() {
		if a.DeltaPercent > alert.ExtremeIncreasePercent && a.Current.GreaterThan(extremeIncreaseMinCost) {
			alerts = append(alerts, alert.Alert{
				Kind: alert.KindExtremeIncrease,
				Message: fmt.Sprintf("ALERT: %s increased by %.0f%% in account %s",
					a.Service, a.DeltaPercent, a.AccountID),
				Source: a,
			})
		}
	}

	return alerts
}
