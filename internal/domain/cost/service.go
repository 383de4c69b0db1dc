package cost

import "context"

// Fetcher returns the cost snapshot of one window
type Fetcher interface {
	FetchSnapshot(ctx context.Context, period Period, window DateRange) (*Snapshot, error)
}

// AccountLister returns the active accounts of the organization
type AccountLister interface {
	ListActiveAccounts(ctx context.Context) ([]Account, error)
}
