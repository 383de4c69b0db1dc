package cost

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func window() DateRange {
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}

func TestSnapshotBuilder_Build(t *testing.T) {
	b := NewSnapshotBuilder(PeriodYesterdayFull, window())
	b.Add("123456789012", "Amazon EC2", decimal.RequireFromString("100.50"))
	b.Add("123456789012", "Amazon EC2", decimal.RequireFromString("0.25"))
	b.Add("123456789012", "Amazon S3", decimal.RequireFromString("42"))
	b.Add("123456789013", "AWS Lambda", decimal.RequireFromString("5"))
	b.Add("123456789013", "Tax", decimal.RequireFromString("-3"))

	s, floored := b.Build()

	if floored != 1 {
		t.Errorf("Build() floored = %d, want 1", floored)
	}
	if got := s.Cost("123456789012", "Amazon EC2"); !got.Equal(decimal.RequireFromString("100.75")) {
		t.Errorf("Cost(EC2) = %s, want 100.75", got)
	}
	if got := s.Cost("123456789013", "Tax"); !got.IsZero() {
		t.Errorf("negative net entry should be floored to zero, got %s", got)
	}
	if got := s.Total(); !got.Equal(decimal.RequireFromString("147.75")) {
		t.Errorf("Total() = %s, want 147.75", got)
	}
	if got := s.AccountTotal("123456789012"); !got.Equal(decimal.RequireFromString("142.75")) {
		t.Errorf("AccountTotal() = %s, want 142.75", got)
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
	if s.Period() != PeriodYesterdayFull {
		t.Errorf("Period() = %s", s.Period())
	}

	// Later builder writes must not leak into the frozen snapshot
	b.Add("123456789012", "Amazon EC2", decimal.NewFromInt(1000))
	if got := s.Cost("123456789012", "Amazon EC2"); !got.Equal(decimal.RequireFromString("100.75")) {
		t.Errorf("snapshot mutated after Build(): %s", got)
	}
}

func TestSnapshot_MissingKeysAreZero(t *testing.T) {
	s := NewSnapshot(PeriodCurrent, window(), map[string]map[string]float64{
		"111111111111": {"Amazon EC2": 10},
	})

	tests := []struct {
		name    string
		account string
		service string
	}{
		{name: "missing account", account: "999999999999", service: "Amazon EC2"},
		{name: "missing service", account: "111111111111", service: "Amazon RDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Cost(tt.account, tt.service); !got.IsZero() {
				t.Errorf("Cost() = %s, want 0", got)
			}
		})
	}

	if s.HasAccount("999999999999") {
		t.Error("HasAccount() true for missing account")
	}
	if got := s.AccountTotal("999999999999"); !got.IsZero() {
		t.Errorf("AccountTotal() = %s, want 0", got)
	}
}

func TestSnapshot_SortedAccessors(t *testing.T) {
	s := NewSnapshot(PeriodCurrent, window(), map[string]map[string]float64{
		"222": {"Amazon S3": 1, "AWS Lambda": 2, "Amazon EC2": 3},
		"111": {"Amazon EC2": 4},
	})

	accounts := s.Accounts()
	if len(accounts) != 2 || accounts[0] != "111" || accounts[1] != "222" {
		t.Errorf("Accounts() = %v", accounts)
	}

	services := s.Services("222")
	want := []string{"AWS Lambda", "Amazon EC2", "Amazon S3"}
	for i := range want {
		if services[i] != want[i] {
			t.Fatalf("Services() = %v, want %v", services, want)
		}
	}

	accounts[0] = "mutated"
	if s.Accounts()[0] != "111" {
		t.Error("Accounts() must return a copy")
	}
}

func TestSnapshot_Prorate(t *testing.T) {
	s := NewSnapshot(PeriodYesterdayFull, window(), map[string]map[string]float64{
		"123456789012": {"Amazon EC2": 100, "Amazon S3": 48},
	})

	tests := []struct {
		name     string
		fraction float64
		wantEC2  float64
	}{
		{name: "nine and a half hours", fraction: 9.5 / 24, wantEC2: 39.583333},
		{name: "clamped above one", fraction: 2, wantEC2: 100},
		{name: "clamped below zero", fraction: -1, wantEC2: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.Prorate(tt.fraction)
			got := p.Cost("123456789012", "Amazon EC2").InexactFloat64()
			if math.Abs(got-tt.wantEC2) > 0.001 {
				t.Errorf("Prorate(%v) EC2 = %v, want %v", tt.fraction, got, tt.wantEC2)
			}
			if p.Period() != s.Period() {
				t.Error("Prorate() should keep the period label")
			}
		})
	}

	if got := s.Cost("123456789012", "Amazon EC2"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Prorate() mutated the source snapshot: %s", got)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		want     float64
	}{
		{name: "normal increase", previous: 100, current: 150, want: 50},
		{name: "normal decrease", previous: 100, current: 50, want: -50},
		{name: "zero previous", previous: 0, current: 100, want: 100},
		{name: "zero current", previous: 100, current: 0, want: -100},
		{name: "both zero", previous: 0, current: 0, want: 0},
		{name: "small values", previous: 0.01, current: 0.02, want: 100},
		{name: "ninety to two hundred", previous: 90, current: 200, want: 122.2222},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(decimal.NewFromFloat(tt.previous), decimal.NewFromFloat(tt.current))
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("PercentChange(%v, %v) = %v, want %v", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}
