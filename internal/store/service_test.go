package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

// fakeRepository records created entities in memory
type fakeRepository struct {
	Repository

	references []*ReferenceRecord
	farmers    []*FarmerRecord
}

func (f *fakeRepository) CreateReferenceRecord(ctx context.Context, record *ReferenceRecord) error {
	f.references = append(f.references, record)
	return nil
}

func (f *fakeRepository) CreateFarmerRecord(ctx context.Context, record *FarmerRecord) error {
	f.farmers = append(f.farmers, record)
	return nil
}

func newTestService() (*Service, *fakeRepository) {
	repo := &fakeRepository{}
	return NewService(repo, loggy.NewNoopLogger()), repo
}

func TestCreateReferenceRecordAssignsLocalID(t *testing.T) {
	svc, repo := newTestService()

	record, err := svc.CreateReferenceRecord(context.Background(), KindFarmType, "  Dairy  ", " milk production ")
	require.NoError(t, err)

	assert.NotEmpty(t, record.LocalID)
	assert.Equal(t, "Dairy", record.Name, "input should be trimmed")
	assert.Equal(t, "milk production", record.Description)
	assert.Equal(t, SyncStatePending, record.SyncState, "new records start pending")
	assert.Nil(t, record.CanonicalID, "no canonical id before first upload")
	require.Len(t, repo.references, 1)
}

func TestCreateReferenceRecordValidation(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CreateReferenceRecord(context.Background(), KindCrop, "   ", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, repo.references, "invalid input must not be persisted")
}

func TestCreateFarmerRecord(t *testing.T) {
	svc, repo := newTestService()

	record, err := svc.CreateFarmerRecord(context.Background(), FarmerRecordInput{
		FarmerName:      "Jane Doe",
		NationalID:      "ID-123",
		FarmTypeLocalID: "ft-01",
		CropLocalID:     "crop-01",
		Location:        "Nakuru",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, record.LocalID)
	assert.Equal(t, SyncStatePending, record.SyncState)
	require.Len(t, repo.farmers, 1)
}

func TestCreateFarmerRecordValidation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name  string
		input FarmerRecordInput
	}{
		{
			name:  "missing farmer name",
			input: FarmerRecordInput{NationalID: "ID-123", FarmTypeLocalID: "ft-01", CropLocalID: "crop-01"},
		},
		{
			name:  "missing national id",
			input: FarmerRecordInput{FarmerName: "Jane", FarmTypeLocalID: "ft-01", CropLocalID: "crop-01"},
		},
		{
			name:  "missing farm type",
			input: FarmerRecordInput{FarmerName: "Jane", NationalID: "ID-123", CropLocalID: "crop-01"},
		},
		{
			name:  "missing crop",
			input: FarmerRecordInput{FarmerName: "Jane", NationalID: "ID-123", FarmTypeLocalID: "ft-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateFarmerRecord(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLocalIDsAreUniquePerRecord(t *testing.T) {
	svc, repo := newTestService()

	for i := 0; i < 10; i++ {
		_, err := svc.CreateReferenceRecord(context.Background(), KindFarmType, "Dairy", "")
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for _, record := range repo.references {
		assert.False(t, seen[record.LocalID])
		seen[record.LocalID] = true
	}
}
