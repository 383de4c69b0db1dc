package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

// MockFetcher is a mock implementation of cost.Fetcher
// Truncated marks periods whose snapshot reports partial data.
type MockFetcher struct {
	Costs      map[cost.Period]map[string]map[string]float64
	Truncated  map[cost.Period]bool
	FetchError error
	Calls      []cost.Period
	Windows    map[cost.Period]cost.DateRange
}

func NewMockFetcher(costs map[cost.Period]map[string]map[string]float64) *MockFetcher {
	return &MockFetcher{
		Costs:     costs,
		Truncated: make(map[cost.Period]bool),
		Windows:   make(map[cost.Period]cost.DateRange),
	}
}

func (m *MockFetcher) FetchSnapshot(ctx context.Context, period cost.Period, window cost.DateRange) (*cost.Snapshot, error) {
	m.Calls = append(m.Calls, period)
	m.Windows[period] = window
	if m.FetchError != nil {
		return nil, m.FetchError
	}

	b := cost.NewSnapshotBuilder(period, window)
	for account, services := range m.Costs[period] {
		for service, amount := range services {
			b.Add(account, service, Dec(fmt.Sprintf("%.4f", amount)))
		}
	}
	if m.Truncated[period] {
		b.MarkTruncated()
	}
	s, _ := b.Build()
	return s, nil
}

// MockAccountLister is a mock implementation of cost.AccountLister
type MockAccountLister struct {
	Accounts  []cost.Account
	ListError error
}

func (m *MockAccountLister) ListActiveAccounts(ctx context.Context) ([]cost.Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Accounts, nil
}

// MockTransmitter is a mock implementation of notification.Transmitter.
// It is safe for concurrent use; Delay simulates a slow mail API.
type MockTransmitter struct {
	Sent      []notification.Email
	SendError error
	NextID    int
	Delay     time.Duration

	mu sync.Mutex
}

func NewMockTransmitter() *MockTransmitter {
	return &MockTransmitter{NextID: 1}
}

func (m *MockTransmitter) Send(ctx context.Context, email notification.Email) (string, error) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendError != nil {
		return "", m.SendError
	}
	m.Sent = append(m.Sent, email)
	id := fmt.Sprintf("msg-%d", m.NextID)
	m.NextID++
	return id, nil
}

// SentCount returns the number of accepted messages
func (m *MockTransmitter) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockSuppressionChecker is a mock implementation of notification.SuppressionChecker
type MockSuppressionChecker struct {
	Suppressed map[string]bool
	CheckError error
	Checked    []string
}

func NewMockSuppressionChecker(suppressed ...string) *MockSuppressionChecker {
	m := &MockSuppressionChecker{Suppressed: make(map[string]bool)}
	for _, addr := range suppressed {
		m.Suppressed[addr] = true
	}
	return m
}

func (m *MockSuppressionChecker) IsSuppressed(ctx context.Context, address string) (bool, error) {
	m.Checked = append(m.Checked, address)
	if m.CheckError != nil {
		return false, m.CheckError
	}
	return m.Suppressed[address], nil
}

// MockQuotaChecker is a mock implementation of notification.QuotaChecker
type MockQuotaChecker struct {
	Quota      notification.Quota
	QuotaError error
}

func (m *MockQuotaChecker) GetQuota(ctx context.Context) (*notification.Quota, error) {
	if m.QuotaError != nil {
		return nil, m.QuotaError
	}
	q := m.Quota
	return &q, nil
}

// MockRunRepository is a mock implementation of report.Repository
type MockRunRepository struct {
	Runs        map[string]*report.Run
	CreateError error
	UpdateError error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{Runs: make(map[string]*report.Run)}
}

func (m *MockRunRepository) Create(ctx context.Context, run *report.Run) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *run
	m.Runs[run.ID] = &cp
	return nil
}

func (m *MockRunRepository) Update(ctx context.Context, run *report.Run) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Runs[run.ID]; !ok {
		return fmt.Errorf("report run not found")
	}
	cp := *run
	m.Runs[run.ID] = &cp
	return nil
}

func (m *MockRunRepository) Get(ctx context.Context, id string) (*report.Run, error) {
	run, ok := m.Runs[id]
	if !ok {
		return nil, fmt.Errorf("report run not found")
	}
	return run, nil
}

func (m *MockRunRepository) List(ctx context.Context, filter report.Filter, limit, offset int) ([]*report.Run, int64, error) {
	var result []*report.Run
	for _, run := range m.Runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.Since != nil && run.StartedAt.Before(*filter.Since) {
			continue
		}
		result = append(result, run)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	total := int64(len(result))
	if offset >= len(result) {
		return []*report.Run{}, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *MockRunRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for id, run := range m.Runs {
		if run.StartedAt.Before(before) {
			delete(m.Runs, id)
			n++
		}
	}
	return n, nil
}

// MockArchiver is a mock implementation of report.Archiver
type MockArchiver struct {
	Objects      map[string][]byte
	ArchiveError error
}

func NewMockArchiver() *MockArchiver {
	return &MockArchiver{Objects: make(map[string][]byte)}
}

func (m *MockArchiver) Archive(ctx context.Context, key string, html []byte) (string, error) {
	if m.ArchiveError != nil {
		return "", m.ArchiveError
	}
	m.Objects[key] = html
	return "mock://" + key, nil
}
