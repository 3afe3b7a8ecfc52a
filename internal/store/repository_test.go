package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLRepository(db, loggy.NewNoopLogger()), mock
}

func TestCreateReferenceRecord(t *testing.T) {
	repo, mock := newMockRepository(t)

	record := NewReferenceRecord(KindFarmType, "Dairy", "Dairy farming")

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO farm_types (local_id,canonical_id,name,description,sync_state,created_at) VALUES (?,?,?,?,?,?)")).
		WithArgs(record.LocalID, nil, "Dairy", "Dairy farming", SyncStatePending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateReferenceRecord(context.Background(), record)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReferenceRecord(t *testing.T) {
	repo, mock := newMockRepository(t)

	createdAt := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT local_id, canonical_id, name, description, sync_state, created_at FROM crops WHERE local_id = ?")).
		WithArgs("crop-01ABC").
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "name", "description", "sync_state", "created_at"}).
			AddRow("crop-01ABC", int64(7), "Maize", "", SyncStateSynced, createdAt))

	record, err := repo.GetReferenceRecord(context.Background(), KindCrop, "crop-01ABC")
	require.NoError(t, err)

	assert.Equal(t, "crop-01ABC", record.LocalID)
	assert.Equal(t, KindCrop, record.Kind)
	require.NotNil(t, record.CanonicalID)
	assert.Equal(t, int64(7), *record.CanonicalID)
	assert.Equal(t, SyncStateSynced, record.SyncState)
}

func TestGetReferenceRecordNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT .+ FROM farm_types").
		WithArgs("ft-missing").
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "name", "description", "sync_state", "created_at"}))

	_, err := repo.GetReferenceRecord(context.Background(), KindFarmType, "ft-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPendingReferenceRecords(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT local_id, canonical_id, name, description, sync_state, created_at FROM farm_types WHERE sync_state = ? ORDER BY created_at ASC, local_id ASC")).
		WithArgs(SyncStatePending).
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "name", "description", "sync_state", "created_at"}).
			AddRow("ft-01", nil, "Dairy", "", SyncStatePending, time.Now()).
			AddRow("ft-02", nil, "Poultry", "", SyncStatePending, time.Now()))

	records, err := repo.ListPendingReferenceRecords(context.Background(), KindFarmType)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ft-01", records[0].LocalID)
	assert.Nil(t, records[0].CanonicalID)
	assert.Equal(t, "ft-02", records[1].LocalID)
}

func TestMarkReferenceSynced(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE farm_types SET canonical_id = ?, sync_state = ? WHERE local_id = ? AND sync_state = ?")).
		WithArgs(int64(42), SyncStateSynced, "ft-01", SyncStatePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkReferenceSynced(context.Background(), KindFarmType, "ft-01", 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReferenceSyncedIdempotent(t *testing.T) {
	repo, mock := newMockRepository(t)

	// Nothing pending; the record already carries the same canonical id
	mock.ExpectExec("UPDATE farm_types").
		WithArgs(int64(42), SyncStateSynced, "ft-01", SyncStatePending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM farm_types").
		WithArgs("ft-01").
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "name", "description", "sync_state", "created_at"}).
			AddRow("ft-01", int64(42), "Dairy", "", SyncStateSynced, time.Now()))

	err := repo.MarkReferenceSynced(context.Background(), KindFarmType, "ft-01", 42)
	assert.NoError(t, err, "repeating the same assignment should be a no-op")
}

func TestMarkReferenceSyncedConflict(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("UPDATE farm_types").
		WithArgs(int64(99), SyncStateSynced, "ft-01", SyncStatePending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM farm_types").
		WithArgs("ft-01").
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "name", "description", "sync_state", "created_at"}).
			AddRow("ft-01", int64(42), "Dairy", "", SyncStateSynced, time.Now()))

	err := repo.MarkReferenceSynced(context.Background(), KindFarmType, "ft-01", 99)
	assert.ErrorIs(t, err, ErrCanonicalConflict)
}

func TestUpsertCanonicalReferenceRecordUpdates(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE crops SET name = ?, description = ?, sync_state = ? WHERE canonical_id = ?")).
		WithArgs("Maize", "Cereal crop", SyncStateSynced, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpsertCanonicalReferenceRecord(context.Background(), KindCrop, 7, "Maize", "Cereal crop")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCanonicalReferenceRecordInserts(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE crops").
		WithArgs("Maize", "", SyncStateSynced, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO crops").
		WithArgs(sqlmock.AnyArg(), int64(7), "Maize", "", SyncStateSynced, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertCanonicalReferenceRecord(context.Background(), KindCrop, 7, "Maize", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateFarmerRecord(t *testing.T) {
	repo, mock := newMockRepository(t)

	record := NewFarmerRecord("Jane Doe", "ID-123", "ft-01", "crop-01", "Nakuru")

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO farmer_records (local_id,canonical_id,farmer_name,national_id,farm_type_local_id,crop_local_id,location,sync_state,created_at) VALUES (?,?,?,?,?,?,?,?,?)")).
		WithArgs(record.LocalID, nil, "Jane Doe", "ID-123", "ft-01", "crop-01", "Nakuru", SyncStatePending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateFarmerRecord(context.Background(), record)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingFarmerRecords(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT local_id, canonical_id, farmer_name, national_id, farm_type_local_id, crop_local_id, location, sync_state, created_at FROM farmer_records WHERE sync_state = ? ORDER BY created_at ASC, local_id ASC")).
		WithArgs(SyncStatePending).
		WillReturnRows(sqlmock.NewRows([]string{"local_id", "canonical_id", "farmer_name", "national_id", "farm_type_local_id", "crop_local_id", "location", "sync_state", "created_at"}).
			AddRow("fr-01", nil, "Jane Doe", "ID-123", "ft-01", "crop-01", "Nakuru", SyncStatePending, time.Now()))

	records, err := repo.ListPendingFarmerRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Jane Doe", records[0].FarmerName)
	assert.Equal(t, SyncStatePending, records[0].SyncState)
}

func TestMarkFarmerSynced(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE farmer_records SET canonical_id = ?, sync_state = ? WHERE local_id = ? AND sync_state = ?")).
		WithArgs(int64(1001), SyncStateSynced, "fr-01", SyncStatePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFarmerSynced(context.Background(), "fr-01", 1001)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFarmerRecordsMissingJoinTarget(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT .+ FROM farmer_records fr").
		WillReturnRows(sqlmock.NewRows([]string{
			"local_id", "canonical_id", "farmer_name", "national_id", "farm_type_local_id",
			"crop_local_id", "location", "sync_state", "created_at", "farm_type_name", "crop_name",
		}).
			AddRow("fr-01", nil, "Jane Doe", "ID-123", "ft-01", "crop-01", "Nakuru", SyncStatePending, time.Now(), "Dairy", nil))

	views, err := repo.ListFarmerRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, "Dairy", views[0].FarmTypeName)
	assert.Equal(t, "#crop-01", views[0].CropName, "missing join target yields a placeholder")
}
