package sync

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
	"github.com/tildaslashalef/fieldsync/internal/ulid"
)

// Repository defines operations for the reconciliation run history
type Repository interface {
	// SaveRun persists a completed run record
	SaveRun(ctx context.Context, run *RunRecord) error

	// ListRuns retrieves the most recent run records
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new sync run SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveRun persists a completed run record
func (r *SQLRepository) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = ulid.SyncRunID()
	}

	query, args, err := r.builder.
		Insert("sync_runs").
		Columns(
			"id",
			"run_trigger",
			"success",
			"farm_types_uploaded",
			"crops_uploaded",
			"farmer_records_uploaded",
			"reference_downloaded",
			"error_count",
			"error_message",
			"started_at",
			"completed_at",
		).
		Values(
			run.ID,
			run.Trigger,
			run.Success,
			run.FarmTypesUploaded,
			run.CropsUploaded,
			run.FarmerRecordsUploaded,
			run.ReferenceDownloaded,
			run.ErrorCount,
			run.ErrorMessage,
			run.StartedAt,
			run.CompletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building save run query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}

	return nil
}

// ListRuns retrieves the most recent run records, newest first
func (r *SQLRepository) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := r.builder.
		Select(
			"id",
			"run_trigger",
			"success",
			"farm_types_uploaded",
			"crops_uploaded",
			"farmer_records_uploaded",
			"reference_downloaded",
			"error_count",
			"error_message",
			"started_at",
			"completed_at",
		).
		From("sync_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(
			&run.ID,
			&run.Trigger,
			&run.Success,
			&run.FarmTypesUploaded,
			&run.CropsUploaded,
			&run.FarmerRecordsUploaded,
			&run.ReferenceDownloaded,
			&run.ErrorCount,
			&run.ErrorMessage,
			&run.StartedAt,
			&run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}

	return runs, nil
}
