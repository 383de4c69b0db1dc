package services

import (
	"time"
	// Lambda images ship without a zoneinfo database
	_ "time/tzdata"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
)

// RollingWindowDays is the length of each rolling-mode window
const RollingWindowDays = 2

// LoadTimezone resolves name, falling back to UTC. The second result is false on fallback.
func LoadTimezone(name string) (*time.Location, bool) {
	if name == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// startOfDay returns local midnight of t's calendar day in loc
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// TimeframeRanges computes the four report windows for now in loc. Every window is a
// half-open date range, so today's window ends tomorrow.
func TimeframeRanges(now time.Time, loc *time.Location) map[cost.Period]cost.DateRange {
	today := startOfDay(now, loc)
	tomorrow := today.AddDate(0, 0, 1)
	yesterday := today.AddDate(0, 0, -1)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	return map[cost.Period]cost.DateRange{
		cost.PeriodTodaySoFar:        {Start: today, End: tomorrow},
		cost.PeriodYesterdayFull:     {Start: yesterday, End: today},
		cost.PeriodMonthToDate:       {Start: monthStart, End: tomorrow},
		cost.PeriodPreviousMonthFull: {Start: prevMonthStart, End: monthStart},
	}
}

// RollingRanges computes the rolling-mode pair: the last two days including today,
// and the two days before them.
func RollingRanges(now time.Time, loc *time.Location) map[cost.Period]cost.DateRange {
	end := startOfDay(now, loc).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -RollingWindowDays)
	comparisonStart := start.AddDate(0, 0, -RollingWindowDays)

	return map[cost.Period]cost.DateRange{
		cost.PeriodCurrent:  {Start: start, End: end},
		cost.PeriodPrevious: {Start: comparisonStart, End: start},
	}
}

// ElapsedHours returns the local wall-clock hours since midnight, e.g. 9.5 at 09:30
func ElapsedHours(now time.Time, loc *time.Location) float64 {
	local := now.In(loc)
	return float64(local.Hour()) + float64(local.Minute())/60
}
