package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
)

// ErrValidation is returned when record input fails validation before persistence
var ErrValidation = errors.New("validation failed")

// Service provides record creation and retrieval with input validation.
// It is the only writer of sync state and canonical ids; the orchestrator
// mutates records exclusively through this service.
type Service struct {
	repo   Repository
	logger *loggy.Logger
}

// NewService creates a new store service
func NewService(repo Repository, logger *loggy.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// FarmerRecordInput carries the fields for a new farmer record
type FarmerRecordInput struct {
	FarmerName      string
	NationalID      string
	FarmTypeLocalID string
	CropLocalID     string
	Location        string
}

// CreateReferenceRecord validates input, allocates a local id and persists
// a pending reference record
func (s *Service) CreateReferenceRecord(ctx context.Context, kind ReferenceKind, name, description string) (*ReferenceRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: %s name is required", ErrValidation, kind)
	}

	record := NewReferenceRecord(kind, name, strings.TrimSpace(description))
	if err := s.repo.CreateReferenceRecord(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Created reference record", "kind", kind, "local_id", record.LocalID, "name", record.Name)
	return record, nil
}

// CreateFarmerRecord validates input, allocates a local id and persists
// a pending farmer record
func (s *Service) CreateFarmerRecord(ctx context.Context, input FarmerRecordInput) (*FarmerRecord, error) {
	farmerName := strings.TrimSpace(input.FarmerName)
	nationalID := strings.TrimSpace(input.NationalID)

	if farmerName == "" {
		return nil, fmt.Errorf("%w: farmer name is required", ErrValidation)
	}
	if nationalID == "" {
		return nil, fmt.Errorf("%w: national id is required", ErrValidation)
	}
	if strings.TrimSpace(input.FarmTypeLocalID) == "" {
		return nil, fmt.Errorf("%w: farm type reference is required", ErrValidation)
	}
	if strings.TrimSpace(input.CropLocalID) == "" {
		return nil, fmt.Errorf("%w: crop reference is required", ErrValidation)
	}

	record := NewFarmerRecord(
		farmerName,
		nationalID,
		strings.TrimSpace(input.FarmTypeLocalID),
		strings.TrimSpace(input.CropLocalID),
		strings.TrimSpace(input.Location),
	)
	if err := s.repo.CreateFarmerRecord(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Created farmer record", "local_id", record.LocalID, "farmer_name", record.FarmerName)
	return record, nil
}

// GetReferenceRecord retrieves a reference record by local id
func (s *Service) GetReferenceRecord(ctx context.Context, kind ReferenceKind, localID string) (*ReferenceRecord, error) {
	return s.repo.GetReferenceRecord(ctx, kind, localID)
}

// ListReferenceRecords retrieves all reference records of a kind
func (s *Service) ListReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error) {
	return s.repo.ListReferenceRecords(ctx, kind)
}

// ListPendingReferenceRecords retrieves reference records awaiting upload
func (s *Service) ListPendingReferenceRecords(ctx context.Context, kind ReferenceKind) ([]*ReferenceRecord, error) {
	return s.repo.ListPendingReferenceRecords(ctx, kind)
}

// ListFarmerRecords retrieves all farmer records joined with reference names
func (s *Service) ListFarmerRecords(ctx context.Context) ([]*FarmerRecordView, error) {
	return s.repo.ListFarmerRecords(ctx)
}

// ListPendingFarmerRecords retrieves farmer records awaiting upload
func (s *Service) ListPendingFarmerRecords(ctx context.Context) ([]*FarmerRecord, error) {
	return s.repo.ListPendingFarmerRecords(ctx)
}

// MarkReferenceSynced records the canonical id the server assigned to a
// reference record. Idempotent for repeated calls with the same arguments.
func (s *Service) MarkReferenceSynced(ctx context.Context, kind ReferenceKind, localID string, canonicalID int64) error {
	return s.repo.MarkReferenceSynced(ctx, kind, localID, canonicalID)
}

// MarkFarmerSynced records the canonical id the server assigned to a farmer record
func (s *Service) MarkFarmerSynced(ctx context.Context, localID string, canonicalID int64) error {
	return s.repo.MarkFarmerSynced(ctx, localID, canonicalID)
}

// UpsertCanonicalReferenceRecord stores a server-authoritative reference record
func (s *Service) UpsertCanonicalReferenceRecord(ctx context.Context, kind ReferenceKind, canonicalID int64, name, description string) error {
	return s.repo.UpsertCanonicalReferenceRecord(ctx, kind, canonicalID, name, description)
}
