package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
)

// NewTestDB creates an in-memory SQLite database for testing. Callers apply migrations.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTestLogger returns a logger that only prints errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// FixedClock returns a clock frozen at t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Clock is a settable test clock
type Clock struct {
	Current time.Time
}

// Now returns the current fake time
func (c *Clock) Now() time.Time { return c.Current }

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }

// Day returns a one-day window starting at midnight UTC of the given date
func Day(year int, month time.Month, day int) cost.DateRange {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return cost.DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// Dec parses a decimal literal, panicking on bad input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SampleTimeframeCosts returns costs for the four report periods of two accounts
func SampleTimeframeCosts() map[cost.Period]map[string]map[string]float64 {
	return map[cost.Period]map[string]map[string]float64{
		cost.PeriodTodaySoFar: {
			"123456789012": {"Amazon EC2": 50, "Amazon S3": 25, "Amazon Bedrock": 15},
			"123456789013": {"Amazon EC2": 40, "AWS Lambda": 5},
		},
		cost.PeriodYesterdayFull: {
			"123456789012": {"Amazon EC2": 100, "Amazon S3": 50, "Amazon Bedrock": 10},
			"123456789013": {"Amazon EC2": 80, "AWS Lambda": 10},
		},
		cost.PeriodMonthToDate: {
			"123456789012": {"Amazon EC2": 1100, "Amazon S3": 550, "Amazon Bedrock": 125},
			"123456789013": {"Amazon EC2": 880, "AWS Lambda": 110},
		},
		cost.PeriodPreviousMonthFull: {
			"123456789012": {"Amazon EC2": 3000, "Amazon S3": 1500, "Amazon Bedrock": 300},
			"123456789013": {"Amazon EC2": 2400, "AWS Lambda": 300},
		},
	}
}
