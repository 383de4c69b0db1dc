package report

import (
	"context"
	"time"
)

// Repository persists run history
type Repository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Run, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver stores a rendered report body and returns its key
type Archiver interface {
	Archive(ctx context.Context, key string, html []byte) (string, error)
}
