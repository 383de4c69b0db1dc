package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
)

// AnalyzerConfig holds the anomaly thresholds
type AnalyzerConfig struct {
	ThresholdPercent float64
	ThresholdDollars float64
	// AIMultiplier scales both thresholds down for AI services
	AIMultiplier float64
	AIServices   []string
}

// CostAnalyzer compares cost snapshots and flags anomalies.
// It holds no state beyond its configuration and is safe for concurrent use.
type CostAnalyzer struct {
	thresholdPercent float64
	thresholdDollars decimal.Decimal
	aiMultiplier     float64
	aiServices       map[string]struct{}
}

// NewCostAnalyzer creates a new cost analyzer
func NewCostAnalyzer(cfg AnalyzerConfig) *CostAnalyzer {
	ai := make(map[string]struct{}, len(cfg.AIServices))
	for _, name := range cfg.AIServices {
		ai[name] = struct{}{}
	}
	return &CostAnalyzer{
		thresholdPercent: cfg.ThresholdPercent,
		thresholdDollars: decimal.NewFromFloat(cfg.ThresholdDollars),
		aiMultiplier:     cfg.AIMultiplier,
		aiServices:       ai,
	}
}

// IsAIService reports whether service is in the AI service set
func (a *CostAnalyzer) IsAIService(service string) bool {
	_, ok := a.aiServices[service]
	return ok
}

// Thresholds returns the effective percent and dollar thresholds for a service
func (a *CostAnalyzer) Thresholds(service string) (float64, decimal.Decimal) {
	if a.IsAIService(service) {
		return a.thresholdPercent * a.aiMultiplier, a.thresholdDollars.Mul(decimal.NewFromFloat(a.aiMultiplier))
	}
	return a.thresholdPercent, a.thresholdDollars
}

// Compare diffs current against baseline over the accounts present in current.
// Accounts that only appear in baseline are not reported.
func (a *CostAnalyzer) Compare(current, baseline *cost.Snapshot) *cost.Analysis {
	return a.compare(current, baseline, false)
}

// CompareProrated diffs a partial current window against a full baseline window scaled
// by fraction, the elapsed share of the current window. Pairs whose prorated baseline is
// zero carry no signal and never become anomalies.
func (a *CostAnalyzer) CompareProrated(current, fullBaseline *cost.Snapshot, fraction float64) *cost.Analysis {
	fraction = clampFraction(fraction)
	analysis := a.compare(current, fullBaseline.Prorate(fraction), true)
	analysis.ProrationFraction = fraction
	return analysis
}

func (a *CostAnalyzer) compare(current, baseline *cost.Snapshot, skipZeroBaseline bool) *cost.Analysis {
	analysis := &cost.Analysis{
		CurrentWindow:     current.Window(),
		BaselineWindow:    baseline.Window(),
		TotalCurrent:      decimal.Zero,
		TotalBaseline:     decimal.Zero,
		Accounts:          []cost.AccountAnalysis{},
		Anomalies:         []cost.Anomaly{},
		AIAnomalies:       []cost.Anomaly{},
		ProrationFraction: 1,
	}

	for _, accountID := range current.Accounts() {
		account := cost.AccountAnalysis{
			AccountID: accountID,
			Current:   current.AccountTotal(accountID),
			Baseline:  baseline.AccountTotal(accountID),
		}
		account.Delta = account.Current.Sub(account.Baseline)
		account.DeltaPercent = cost.PercentChange(account.Baseline, account.Current)

		for _, service := range current.Services(accountID) {
			delta := a.serviceDelta(accountID, service, current, baseline)
			account.Services = append(account.Services, delta)

			if skipZeroBaseline && delta.Baseline.IsZero() {
				continue
			}
			anomaly, ok := a.checkThresholds(delta)
			if !ok {
				continue
			}
			if delta.IsAIService {
				analysis.AIAnomalies = append(analysis.AIAnomalies, anomaly)
			} else {
				analysis.Anomalies = append(analysis.Anomalies, anomaly)
			}
		}

		analysis.TotalCurrent = analysis.TotalCurrent.Add(account.Current)
		analysis.TotalBaseline = analysis.TotalBaseline.Add(account.Baseline)
		analysis.Accounts = append(analysis.Accounts, account)
	}

	analysis.TotalDelta = analysis.TotalCurrent.Sub(analysis.TotalBaseline)
	analysis.TotalDeltaPercent = cost.PercentChange(analysis.TotalBaseline, analysis.TotalCurrent)

	return analysis
}

func (a *CostAnalyzer) serviceDelta(accountID, service string, current, baseline *cost.Snapshot) cost.ServiceDelta {
	cur := current.Cost(accountID, service)
	base := baseline.Cost(accountID, service)
	return cost.ServiceDelta{
		AccountID:    accountID,
		Service:      service,
		Current:      cur,
		Baseline:     base,
		Delta:        cur.Sub(base),
		DeltaPercent: cost.PercentChange(base, cur),
		IsAIService:  a.IsAIService(service),
	}
}

// checkThresholds requires both thresholds to be strictly exceeded
func (a *CostAnalyzer) checkThresholds(delta cost.ServiceDelta) (cost.Anomaly, bool) {
	pct, dollars := a.Thresholds(delta.Service)
	if delta.DeltaPercent > pct && delta.Delta.GreaterThan(dollars) {
		return cost.Anomaly{
			ServiceDelta:     delta,
			ThresholdPercent: pct,
			ThresholdDollars: dollars,
		}, true
	}
	return cost.Anomaly{}, false
}

// AnalyzeTimeframes summarizes each fetched period and compares today so far against
// yesterday prorated by elapsedHours. A missing today or yesterday snapshot leaves the
// comparison nil.
func (a *CostAnalyzer) AnalyzeTimeframes(snapshots map[cost.Period]*cost.Snapshot, elapsedHours float64, generatedAt time.Time, timezone string) *cost.TimeframeAnalysis {
	result := &cost.TimeframeAnalysis{
		GeneratedAt:  generatedAt,
		Timezone:     timezone,
		ElapsedHours: elapsedHours,
	}

	for _, period := range cost.TimeframePeriods {
		snapshot, ok := snapshots[period]
		if !ok {
			continue
		}
		result.Periods = append(result.Periods, summarize(snapshot))
	}

	today, okToday := snapshots[cost.PeriodTodaySoFar]
	yesterday, okYesterday := snapshots[cost.PeriodYesterdayFull]
	if okToday && okYesterday {
		result.Comparison = a.CompareProrated(today, yesterday, elapsedHours/24)
	}

	return result
}

func summarize(s *cost.Snapshot) cost.PeriodSummary {
	summary := cost.PeriodSummary{
		Period:   s.Period(),
		Window:   s.Window(),
		Total:    s.Total(),
		Accounts: []cost.AccountTotal{},
	}
	for _, id := range s.Accounts() {
		summary.Accounts = append(summary.Accounts, cost.AccountTotal{
			AccountID: id,
			Total:     s.AccountTotal(id),
		})
	}
	// Largest spenders first; ties keep id order
	sort.SliceStable(summary.Accounts, func(i, j int) bool {
		return summary.Accounts[i].Total.GreaterThan(summary.Accounts[j].Total)
	})
	return summary
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
