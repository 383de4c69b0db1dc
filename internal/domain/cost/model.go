package cost

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the date format Cost Explorer expects
const DateLayout = "2006-01-02"

// Period names a fetched cost window
type Period string

const (
	PeriodTodaySoFar        Period = "today_so_far"
	PeriodYesterdayFull     Period = "yesterday_full"
	PeriodMonthToDate       Period = "month_to_date"
	PeriodPreviousMonthFull Period = "previous_month_full"

	// Rolling mode windows
	PeriodCurrent  Period = "current"
	PeriodPrevious Period = "previous"
)

// TimeframePeriods lists the multi-period windows in report order
var TimeframePeriods = []Period{
	PeriodTodaySoFar,
	PeriodYesterdayFull,
	PeriodMonthToDate,
	PeriodPreviousMonthFull,
}

// DateRange is a half-open [Start, End) window of calendar dates
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// StartDate returns Start formatted for Cost Explorer
func (r DateRange) StartDate() string { return r.Start.Format(DateLayout) }

// EndDate returns End formatted for Cost Explorer
func (r DateRange) EndDate() string { return r.End.Format(DateLayout) }

func (r DateRange) String() string { return r.StartDate() + " to " + r.EndDate() }

// Account is an active member account of the organization
type Account struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Snapshot is an immutable account → service → cost mapping summed over one window.
// Lookups of missing keys return zero.
type Snapshot struct {
	period    Period
	window    DateRange
	costs     map[string]map[string]decimal.Decimal
	truncated bool
}

// Period returns the snapshot's period label
func (s *Snapshot) Period() Period { return s.period }

// Window returns the snapshot's date range
func (s *Snapshot) Window() DateRange { return s.window }

// Truncated reports whether the source stopped before all data was read
func (s *Snapshot) Truncated() bool { return s.truncated }

// Accounts returns the account ids in sorted order
func (s *Snapshot) Accounts() []string {
	ids := make([]string, 0, len(s.costs))
	for id := range s.costs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasAccount reports whether the snapshot has any entry for account
func (s *Snapshot) HasAccount(account string) bool {
	_, ok := s.costs[account]
	return ok
}

// Services returns the services recorded for account in sorted order
func (s *Snapshot) Services(account string) []string {
	services := s.costs[account]
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cost returns the amount for account and service, or zero
func (s *Snapshot) Cost(account, service string) decimal.Decimal {
	if amount, ok := s.costs[account][service]; ok {
		return amount
	}
	return decimal.Zero
}

// AccountTotal sums every service of account
func (s *Snapshot) AccountTotal(account string) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range s.costs[account] {
		total = total.Add(amount)
	}
	return total
}

// Total sums every entry of the snapshot
func (s *Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for account := range s.costs {
		total = total.Add(s.AccountTotal(account))
	}
	return total
}

// Len returns the number of (account, service) entries
func (s *Snapshot) Len() int {
	n := 0
	for _, services := range s.costs {
		n += len(services)
	}
	return n
}

// Prorate returns a new snapshot with every entry scaled by fraction, clamped to [0, 1].
func (s *Snapshot) Prorate(fraction float64) *Snapshot {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	factor := decimal.NewFromFloat(fraction)

	costs := make(map[string]map[string]decimal.Decimal, len(s.costs))
	for account, services := range s.costs {
		scaled := make(map[string]decimal.Decimal, len(services))
		for service, amount := range services {
			scaled[service] = amount.Mul(factor)
		}
		costs[account] = scaled
	}
	return &Snapshot{period: s.period, window: s.window, costs: costs, truncated: s.truncated}
}

// SnapshotBuilder accumulates line items into a Snapshot
type SnapshotBuilder struct {
	period    Period
	window    DateRange
	costs     map[string]map[string]decimal.Decimal
	truncated bool
}

// NewSnapshotBuilder creates a builder for one window
func NewSnapshotBuilder(period Period, window DateRange) *SnapshotBuilder {
	return &SnapshotBuilder{
		period: period,
		window: window,
		costs:  make(map[string]map[string]decimal.Decimal),
	}
}

// Add accumulates amount onto (account, service). Negative line items (credits) are
// allowed here and net against usage in the same window.
func (b *SnapshotBuilder) Add(account, service string, amount decimal.Decimal) {
	services, ok := b.costs[account]
	if !ok {
		services = make(map[string]decimal.Decimal)
		b.costs[account] = services
	}
	services[service] = services[service].Add(amount)
}

// MarkTruncated flags the snapshot as built from partial data
func (b *SnapshotBuilder) MarkTruncated() {
	b.truncated = true
}

// Build freezes the accumulated entries into a Snapshot. Entries whose net is negative
// are floored to zero; the second result counts them.
func (b *SnapshotBuilder) Build() (*Snapshot, int) {
	floored := 0
	costs := make(map[string]map[string]decimal.Decimal, len(b.costs))
	for account, services := range b.costs {
		frozen := make(map[string]decimal.Decimal, len(services))
		for service, amount := range services {
			if amount.IsNegative() {
				amount = decimal.Zero
				floored++
			}
			frozen[service] = amount
		}
		costs[account] = frozen
	}
	return &Snapshot{period: b.period, window: b.window, costs: costs, truncated: b.truncated}, floored
}

// NewSnapshot builds a snapshot from plain amounts
func NewSnapshot(period Period, window DateRange, costs map[string]map[string]float64) *Snapshot {
	b := NewSnapshotBuilder(period, window)
	for account, services := range costs {
		for service, amount := range services {
			b.Add(account, service, decimal.NewFromFloat(amount))
		}
	}
	s, _ := b.Build()
	return s
}

// PercentChange returns (current-previous)/previous*100. A zero baseline yields 100
// when there is new spend and 0 otherwise.
func PercentChange(previous, current decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
