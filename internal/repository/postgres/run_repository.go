package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/metrics"
)

const runColumns = `id, trigger_source, mode, status, subject, total_cost, anomaly_count, alert_count,
	recipients, message_id, reason, error_message, archive_key, started_at, completed_at, duration_ms`

// ErrRunNotFound is returned by Get for an unknown id
var ErrRunNotFound = errors.New("report run not found")

// RunRepository implements report.Repository for PostgreSQL/SQLite
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run record
func (r *RunRepository) Create(ctx context.Context, run *report.Run) error {
	defer observe("insert", time.Now())

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO report_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		string(run.Trigger),
		string(run.Mode),
		string(run.Status),
		run.Subject,
		run.TotalCost,
		run.AnomalyCount,
		run.AlertCount,
		run.Recipients,
		run.MessageID,
		run.Reason,
		run.ErrorMessage,
		run.ArchiveKey,
		run.StartedAt.UTC(),
		nullableTime(run.CompletedAt),
		run.DurationMs,
	)
	if err != nil {
		return apperrors.DatabaseError("failed to create report run", err)
	}
	return nil
}

// Update overwrites the mutable fields of a run
func (r *RunRepository) Update(ctx context.Context, run *report.Run) error {
	defer observe("update", time.Now())

	query := `
		UPDATE report_runs
		SET status = $1, subject = $2, total_cost = $3, anomaly_count = $4, alert_count = $5,
			recipients = $6, message_id = $7, reason = $8, error_message = $9, archive_key = $10,
			completed_at = $11, duration_ms = $12
		WHERE id = $13
	`

	result, err := r.db.ExecContext(ctx, query,
		string(run.Status),
		run.Subject,
		run.TotalCost,
		run.AnomalyCount,
		run.AlertCount,
		run.Recipients,
		run.MessageID,
		run.Reason,
		run.ErrorMessage,
		run.ArchiveKey,
		nullableTime(run.CompletedAt),
		run.DurationMs,
		run.ID,
	)
	if err != nil {
		return apperrors.DatabaseError("failed to update report run", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return apperrors.DatabaseError("failed to update report run", ErrRunNotFound)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*report.Run, error) {
	defer observe("select", time.Now())

	query := `SELECT ` + runColumns + ` FROM report_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get report run", err)
	}
	return run, nil
}

// List returns runs newest first, with the total matching count
func (r *RunRepository) List(ctx context.Context, filter report.Filter, limit, offset int) ([]*report.Run, int64, error) {
	defer observe("select", time.Now())

	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM report_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.DatabaseError("failed to count report runs", err)
	}

	query := fmt.Sprintf("SELECT %s FROM report_runs%s ORDER BY started_at DESC LIMIT $%d OFFSET $%d",
		runColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.DatabaseError("failed to list report runs", err)
	}
	defer rows.Close()

	runs := []*report.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, apperrors.DatabaseError("failed to scan report run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.DatabaseError("failed to list report runs", err)
	}

	return runs, total, nil
}

// DeleteBefore removes runs started before the cutoff
func (r *RunRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	defer observe("delete", time.Now())

	result, err := r.db.ExecContext(ctx, `DELETE FROM report_runs WHERE started_at < $1`, before.UTC())
	if err != nil {
		return 0, apperrors.DatabaseError("failed to delete report runs", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*report.Run, error) {
	var run report.Run
	var trigger, mode, status string
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&trigger,
		&mode,
		&status,
		&run.Subject,
		&run.TotalCost,
		&run.AnomalyCount,
		&run.AlertCount,
		&run.Recipients,
		&run.MessageID,
		&run.Reason,
		&run.ErrorMessage,
		&run.ArchiveKey,
		&run.StartedAt,
		&completedAt,
		&run.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	run.Trigger = report.Trigger(trigger)
	run.Mode = report.Mode(mode)
	run.Status = report.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, "report_runs", time.Since(start))
}
