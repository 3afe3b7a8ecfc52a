package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

var (
	// ErrNotFound is returned when a record with the given local id does not exist
	ErrNotFound = errors.New("record not found")

	// ErrCanonicalConflict is returned when a synced record is marked again
	// with a different canonical id
	ErrCanonicalConflict = errors.New("canonical id already assigned")
)

// Repository defines the persistence operations for syncable records
type Repository interface {
	CreateReferenceRecord(ctx context.Context, record *ReferenceRecord) error
	GetReferenceRecord(ctx context.Context, kind ReferenceKind, localID string) (*ReferenceRecord, error)
	ListReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error)
	ListPendingReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error)
	MarkReferenceSynced(ctx context.Context, kind ReferenceKind, localID string, canonicalID int64) error
	UpsertCanonicalReferenceRecord(ctx context.Context, kind ReferenceKind, canonicalID int64, name, description string) error

	CreateFarmerRecord(ctx context.Context, record *FarmerRecord) error
	GetFarmerRecord(ctx context.Context, localID string) (*FarmerRecord, error)
	ListFarmerRecords(ctx context.Context) ([]*FarmerRecordView, error)
	ListPendingFarmerRecords(ctx context.Context) ([]*FarmerRecord, error)
	MarkFarmerSynced(ctx context.Context, localID string, canonicalID int64) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new record SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var referenceColumns = []string{
	"local_id",
	"canonical_id",
	"name",
	"description",
	"sync_state",
	"created_at",
}

// CreateReferenceRecord saves a new reference record
func (r *SQLRepository) CreateReferenceRecord(ctx context.Context, record *ReferenceRecord) error {
	table, err := tableForKind(record.Kind)
	if err != nil {
		return err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.builder.
		Insert(table).
		Columns(referenceColumns...).
		Values(
			record.LocalID,
			record.CanonicalID,
			record.Name,
			record.Description,
			record.SyncState,
			record.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s record: %w", record.Kind, err)
	}

	r.logger.Debug("Created reference record", "kind", record.Kind, "local_id", record.LocalID, "name", record.Name)
	return nil
}

// GetReferenceRecord retrieves a reference record by its local id
func (r *SQLRepository) GetReferenceRecord(ctx context.Context, kind ReferenceKind, localID string) (*ReferenceRecord, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := r.builder.
		Select(referenceColumns...).
		From(table).
		Where(sq.Eq{"local_id": localID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	record, err := scanReferenceRecord(r.db.QueryRowContext(ctx, query, args...), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning %s record: %w", kind, err)
	}

	return record, nil
}

// ListReferenceRecords retrieves all reference records of a kind in creation order
func (r *SQLRepository) ListReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error) {
	return r.listReference(ctx, kind, nil)
}

// ListPendingReferenceRecords retrieves reference records awaiting upload in creation order
func (r *SQLRepository) ListPendingReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error) {
	return r.listReference(ctx, kind, sq.Eq{"sync_state": SyncStatePending})
}

func (r *SQLRepository) listReference(ctx context.Context, kind ReferenceKind, where interface{}) ([]*ReferenceRecord, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}

	q := r.builder.
		Select(referenceColumns...).
		From(table).
		OrderBy("created_at ASC", "local_id ASC")
	if where != nil {
		q = q.Where(where)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", kind, err)
	}
	defer rows.Close()

	var records []*ReferenceRecord
	for rows.Next() {
		record, err := scanReferenceRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", kind, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s records: %w", kind, err)
	}

	return records, nil
}

// MarkReferenceSynced assigns the canonical id and flips the record to synced.
// Calling it again with the same arguments is a no-op; a different canonical
// id for an already-synced record is a conflict.
func (r *SQLRepository) MarkReferenceSynced(ctx context.Context, kind ReferenceKind, localID string, canonicalID int64) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}

	query, args, err := r.builder.
		Update(table).
		Set("canonical_id", canonicalID).
		Set("sync_state", SyncStateSynced).
		Where(sq.Eq{"local_id": localID, "sync_state": SyncStatePending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("marking %s record synced: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing was pending: either the record is unknown or already synced
	record, err := r.GetReferenceRecord(ctx, kind, localID)
	if err != nil {
		return err
	}
	if record.CanonicalID != nil && *record.CanonicalID == canonicalID {
		return nil
	}
	return fmt.Errorf("%s %s: %w", kind, localID, ErrCanonicalConflict)
}

// UpsertCanonicalReferenceRecord inserts or updates a server-authoritative
// reference record keyed by canonical id. Server-origin records are never
// locally pending.
func (r *SQLRepository) UpsertCanonicalReferenceRecord(ctx context.Context, kind ReferenceKind, canonicalID int64, name, description string) error {
	table, err := tableForKind(kind)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updateQuery, updateArgs, err := r.builder.
		Update(table).
		Set("name", name).
		Set("description", description).
		Set("sync_state", SyncStateSynced).
		Where(sq.Eq{"canonical_id": canonicalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert update query: %w", err)
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("updating canonical %s record: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if affected == 0 {
		insertQuery, insertArgs, err := r.builder.
			Insert(table).
			Columns(referenceColumns...).
			Values(
				localIDForKind(kind),
				canonicalID,
				name,
				description,
				SyncStateSynced,
				time.Now().UTC(),
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("building upsert insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("inserting canonical %s record: %w", kind, err)
		}
	}

	return tx.Commit()
}

var farmerColumns = []string{
	"local_id",
	"canonical_id",
	"farmer_name",
	"national_id",
	"farm_type_local_id",
	"crop_local_id",
	"location",
	"sync_state",
	"created_at",
}

// CreateFarmerRecord saves a new farmer record
func (r *SQLRepository) CreateFarmerRecord(ctx context.Context, record *FarmerRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.builder.
		Insert("farmer_records").
		Columns(farmerColumns...).
		Values(
			record.LocalID,
			record.CanonicalID,
			record.FarmerName,
			record.NationalID,
			record.FarmTypeLocalID,
			record.CropLocalID,
			record.Location,
			record.SyncState,
			record.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting farmer record: %w", err)
	}

	r.logger.Debug("Created farmer record", "local_id", record.LocalID, "farmer_name", record.FarmerName)
	return nil
}

// GetFarmerRecord retrieves a farmer record by its local id
func (r *SQLRepository) GetFarmerRecord(ctx context.Context, localID string) (*FarmerRecord, error) {
	query, args, err := r.builder.
		Select(farmerColumns...).
		From("farmer_records").
		Where(sq.Eq{"local_id": localID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	record, err := scanFarmerRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning farmer record: %w", err)
	}

	return record, nil
}

// ListFarmerRecords retrieves all farmer records joined with the reference
// names. A missing join target yields a placeholder name instead of an error.
func (r *SQLRepository) ListFarmerRecords(ctx context.Context) ([]*FarmerRecordView, error) {
	query, args, err := r.builder.
		Select(
			"fr.local_id",
			"fr.canonical_id",
			"fr.farmer_name",
			"fr.national_id",
			"fr.farm_type_local_id",
			"fr.crop_local_id",
			"fr.location",
			"fr.sync_state",
			"fr.created_at",
			"ft.name AS farm_type_name",
			"c.name AS crop_name",
		).
		From("farmer_records fr").
		LeftJoin("farm_types ft ON fr.farm_type_local_id = ft.local_id").
		LeftJoin("crops c ON fr.crop_local_id = c.local_id").
		OrderBy("fr.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing farmer records: %w", err)
	}
	defer rows.Close()

	var views []*FarmerRecordView
	for rows.Next() {
		var (
			view         FarmerRecordView
			canonicalID  sql.NullInt64
			farmTypeName sql.NullString
			cropName     sql.NullString
		)
		if err := rows.Scan(
			&view.LocalID,
			&canonicalID,
			&view.FarmerName,
			&view.NationalID,
			&view.FarmTypeLocalID,
			&view.CropLocalID,
			&view.Location,
			&view.SyncState,
			&view.CreatedAt,
			&farmTypeName,
			&cropName,
		); err != nil {
			return nil, fmt.Errorf("scanning farmer record view: %w", err)
		}

		if canonicalID.Valid {
			view.CanonicalID = &canonicalID.Int64
		}
		view.FarmTypeName = farmTypeName.String
		if !farmTypeName.Valid || farmTypeName.String == "" {
			view.FarmTypeName = "#" + view.FarmTypeLocalID
		}
		view.CropName = cropName.String
		if !cropName.Valid || cropName.String == "" {
			view.CropName = "#" + view.CropLocalID
		}

		views = append(views, &view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating farmer records: %w", err)
	}

	return views, nil
}

// ListPendingFarmerRecords retrieves farmer records awaiting upload in creation order
func (r *SQLRepository) ListPendingFarmerRecords(ctx context.Context) ([]*FarmerRecord, error) {
	query, args, err := r.builder.
		Select(farmerColumns...).
		From("farmer_records").
		Where(sq.Eq{"sync_state": SyncStatePending}).
		OrderBy("created_at ASC", "local_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending farmer records: %w", err)
	}
	defer rows.Close()

	var records []*FarmerRecord
	for rows.Next() {
		record, err := scanFarmerRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning farmer record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating farmer records: %w", err)
	}

	return records, nil
}

// MarkFarmerSynced assigns the canonical id and flips the record to synced,
// with the same idempotency rules as MarkReferenceSynced
func (r *SQLRepository) MarkFarmerSynced(ctx context.Context, localID string, canonicalID int64) error {
	query, args, err := r.builder.
		Update("farmer_records").
		Set("canonical_id", canonicalID).
		Set("sync_state", SyncStateSynced).
		Where(sq.Eq{"local_id": localID, "sync_state": SyncStatePending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("marking farmer record synced: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	record, err := r.GetFarmerRecord(ctx, localID)
	if err != nil {
		return err
	}
	if record.CanonicalID != nil && *record.CanonicalID == canonicalID {
		return nil
	}
	return fmt.Errorf("farmer record %s: %w", localID, ErrCanonicalConflict)
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReferenceRecord(row rowScanner, kind ReferenceKind) (*ReferenceRecord, error) {
	var (
		record      ReferenceRecord
		canonicalID sql.NullInt64
	)

	if err := row.Scan(
		&record.LocalID,
		&canonicalID,
		&record.Name,
		&record.Description,
		&record.SyncState,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}

	record.Kind = kind
	if canonicalID.Valid {
		record.CanonicalID = &canonicalID.Int64
	}

	return &record, nil
}

func scanFarmerRecord(row rowScanner) (*FarmerRecord, error) {
	var (
		record      FarmerRecord
		canonicalID sql.NullInt64
	)

	if err := row.Scan(
		&record.LocalID,
		&canonicalID,
		&record.FarmerName,
		&record.NationalID,
		&record.FarmTypeLocalID,
		&record.CropLocalID,
		&record.Location,
		&record.SyncState,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}

	if canonicalID.Valid {
		record.CanonicalID = &canonicalID.Int64
	}

	return &record, nil
}
