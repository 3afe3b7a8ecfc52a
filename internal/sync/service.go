package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tildaslashalef/fieldsync/internal/loggy"
	"github.com/tildaslashalef/fieldsync/internal/remote"
	"github.com/tildaslashalef/fieldsync/internal/store"
	"github.com/tildaslashalef/fieldsync/internal/ulid"
)

// RemoteClient is the remote service surface the orchestrator depends on
type RemoteClient interface {
	CreateFarmType(ctx context.Context, payload remote.ReferencePayload) (*remote.ReferenceResponse, error)
	CreateCrop(ctx context.Context, payload remote.ReferencePayload) (*remote.ReferenceResponse, error)
	CreateFarmerRecord(ctx context.Context, payload remote.FarmerPayload) (*remote.FarmerResponse, error)
	ListFarmTypes(ctx context.Context) ([]remote.ReferenceResponse, error)
	ListCrops(ctx context.Context) ([]remote.ReferenceResponse, error)
}

// connectivityChecker reports current reachability
type connectivityChecker interface {
	CurrentStatus(ctx context.Context, forceRefresh bool) bool
}

// Service orchestrates reconciliation runs. At most one run executes at a
// time; records are mutated only through the store's update contract.
type Service struct {
	store   *store.Service
	runs    Repository
	client  RemoteClient
	monitor connectivityChecker
	logger  *loggy.Logger

	mu    sync.Mutex
	phase Phase
}

// NewService creates a new sync orchestrator
func NewService(storeService *store.Service, runs Repository, client RemoteClient, monitor connectivityChecker, logger *loggy.Logger) *Service {
	return &Service{
		store:   storeService,
		runs:    runs,
		client:  client,
		monitor: monitor,
		logger:  logger,
		phase:   PhaseIdle,
	}
}

// Phase returns the orchestrator's current phase
func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Service) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// tryBegin claims the run slot; a run already executing rejects the trigger
func (s *Service) tryBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return ErrSyncInProgress
	}
	s.phase = PhaseCollectingPending
	return nil
}

// HandleConnectivityChange starts an automatic run on a reconnect event.
// Wired as a connectivity monitor listener.
func (s *Service) HandleConnectivityChange(online bool) {
	if !online {
		return
	}

	s.logger.Info("Device came online, starting automatic sync")
	go func() {
		if _, err := s.Run(context.Background(), TriggerReconnect); err != nil {
			s.logger.Warn("Automatic sync did not complete", "error", err)
		}
	}()
}

// Run executes one reconciliation pass: upload pending reference records,
// then pending farmer records, then download authoritative reference data.
// Per-record failures are isolated and collected in the summary.
func (s *Service) Run(ctx context.Context, trigger Trigger) (*Summary, error) {
	if err := s.tryBegin(); err != nil {
		return nil, err
	}
	defer s.setPhase(PhaseIdle)

	summary := &Summary{
		RunID:     ulid.SyncRunID(),
		Trigger:   trigger,
		Success:   true,
		StartedAt: time.Now().UTC(),
	}

	if !s.monitor.CurrentStatus(ctx, false) {
		summary.Success = false
		summary.Err = ErrNotConnected.Error()
		summary.Duration = time.Since(summary.StartedAt)
		return summary, ErrNotConnected
	}

	s.logger.Info("Starting sync run", "run_id", summary.RunID, "trigger", trigger)

	if err := s.uploadReferenceData(ctx, summary); err != nil {
		return s.failRun(ctx, summary, err)
	}

	if err := s.uploadFarmerData(ctx, summary); err != nil {
		return s.failRun(ctx, summary, err)
	}

	s.downloadReferenceData(ctx, summary)

	summary.Duration = time.Since(summary.StartedAt)
	s.saveRun(ctx, summary)

	s.logger.Info("Sync run complete",
		"run_id", summary.RunID,
		"farm_types_uploaded", summary.FarmTypesUploaded,
		"crops_uploaded", summary.CropsUploaded,
		"farmer_records_uploaded", summary.FarmerRecordsUploaded,
		"reference_downloaded", summary.ReferenceDownloaded,
		"errors", len(summary.Errors),
	)

	return summary, nil
}

// failRun marks a run-level failure (store unavailable and the like);
// uploads already committed remain committed
func (s *Service) failRun(ctx context.Context, summary *Summary, err error) (*Summary, error) {
	summary.Success = false
	summary.Err = err.Error()
	summary.Duration = time.Since(summary.StartedAt)
	s.saveRun(ctx, summary)
	return summary, err
}

func (s *Service) saveRun(ctx context.Context, summary *Summary) {
	if err := s.runs.SaveRun(ctx, newRunRecord(summary)); err != nil {
		s.logger.Error("Failed to record sync run", "run_id", summary.RunID, "error", err)
	}
}

// uploadReferenceData uploads pending farm types then crops in creation
// order. Reference uploads must complete (success or isolated failure)
// before any farmer record upload is attempted.
func (s *Service) uploadReferenceData(ctx context.Context, summary *Summary) error {
	s.setPhase(PhaseUploadingReference)

	uploaded, err := s.uploadReferenceKind(ctx, store.KindFarmType, summary)
	if err != nil {
		return err
	}
	summary.FarmTypesUploaded = uploaded

	uploaded, err = s.uploadReferenceKind(ctx, store.KindCrop, summary)
	if err != nil {
		return err
	}
	summary.CropsUploaded = uploaded

	return nil
}

func (s *Service) uploadReferenceKind(ctx context.Context, kind store.ReferenceKind, summary *Summary) (int, error) {
	pending, err := s.store.ListPendingReferenceRecords(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("collecting pending %s records: %w", kind, err)
	}

	var uploaded int
	for _, record := range pending {
		// Fields only; the local id never leaves the device
		resp, err := s.createReference(ctx, kind, remote.ReferencePayload{
			Name:        record.Name,
			Description: record.Description,
		})
		if err != nil {
			s.logger.Warn("Reference upload failed", "kind", kind, "local_id", record.LocalID, "error", err)
			summary.addError(kind, record.LocalID, err)
			continue
		}

		if err := s.store.MarkReferenceSynced(ctx, kind, record.LocalID, resp.ID); err != nil {
			return uploaded, fmt.Errorf("marking %s %s synced: %w", kind, record.LocalID, err)
		}

		s.logger.Debug("Uploaded reference record", "kind", kind, "local_id", record.LocalID, "canonical_id", resp.ID)
		uploaded++
	}

	return uploaded, nil
}

func (s *Service) createReference(ctx context.Context, kind store.ReferenceKind, payload remote.ReferencePayload) (*remote.ReferenceResponse, error) {
	if kind == store.KindCrop {
		return s.client.CreateCrop(ctx, payload)
	}
	return s.client.CreateFarmType(ctx, payload)
}

// uploadFarmerData uploads pending farmer records, strictly after the
// reference phase. Both foreign references must resolve to canonical ids;
// an unresolved reference fails the individual record, which stays pending.
func (s *Service) uploadFarmerData(ctx context.Context, summary *Summary) error {
	s.setPhase(PhaseUploadingFarmerData)

	pending, err := s.store.ListPendingFarmerRecords(ctx)
	if err != nil {
		return fmt.Errorf("collecting pending farmer records: %w", err)
	}

	for _, record := range pending {
		farmTypeID, err := s.resolveCanonical(ctx, store.KindFarmType, record.FarmTypeLocalID)
		if err != nil {
			summary.addFarmerError(record.LocalID, err)
			continue
		}

		cropID, err := s.resolveCanonical(ctx, store.KindCrop, record.CropLocalID)
		if err != nil {
			summary.addFarmerError(record.LocalID, err)
			continue
		}

		resp, err := s.client.CreateFarmerRecord(ctx, remote.FarmerPayload{
			FarmerName: record.FarmerName,
			NationalID: record.NationalID,
			FarmType:   farmTypeID,
			Crop:       cropID,
			Location:   record.Location,
		})
		if err != nil {
			s.logger.Warn("Farmer record upload failed", "local_id", record.LocalID, "error", err)
			summary.addFarmerError(record.LocalID, err)
			continue
		}

		if err := s.store.MarkFarmerSynced(ctx, record.LocalID, resp.ID); err != nil {
			return fmt.Errorf("marking farmer record %s synced: %w", record.LocalID, err)
		}

		s.logger.Debug("Uploaded farmer record", "local_id", record.LocalID, "canonical_id", resp.ID)
		summary.FarmerRecordsUploaded++
	}

	return nil
}

// resolveCanonical maps a reference record's local id to its canonical id
func (s *Service) resolveCanonical(ctx context.Context, kind store.ReferenceKind, localID string) (int64, error) {
	record, err := s.store.GetReferenceRecord(ctx, kind, localID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", ErrUnresolvedReference, kind, localID, err)
	}
	if record.CanonicalID == nil {
		return 0, fmt.Errorf("%w: %s %s has no canonical id", ErrUnresolvedReference, kind, localID)
	}
	return *record.CanonicalID, nil
}

// downloadReferenceData fetches the server's authoritative reference
// collections. Download failures are logged but never fail the run;
// uploads already committed remain committed.
func (s *Service) downloadReferenceData(ctx context.Context, summary *Summary) {
	s.setPhase(PhaseDownloadingReference)

	farmTypes, err := s.client.ListFarmTypes(ctx)
	if err != nil {
		s.logger.Warn("Failed to download farm types", "error", err)
	} else {
		summary.ReferenceDownloaded += s.upsertDownloaded(ctx, store.KindFarmType, farmTypes)
	}

	crops, err := s.client.ListCrops(ctx)
	if err != nil {
		s.logger.Warn("Failed to download crops", "error", err)
	} else {
		summary.ReferenceDownloaded += s.upsertDownloaded(ctx, store.KindCrop, crops)
	}
}

func (s *Service) upsertDownloaded(ctx context.Context, kind store.ReferenceKind, records []remote.ReferenceResponse) int {
	var stored int
	for _, record := range records {
		if err := s.store.UpsertCanonicalReferenceRecord(ctx, kind, record.ID, record.Name, record.Description); err != nil {
			s.logger.Warn("Failed to store downloaded reference record", "kind", kind, "canonical_id", record.ID, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// Runs returns the most recent reconciliation run history
func (s *Service) Runs(ctx context.Context, limit int) ([]*RunRecord, error) {
	return s.runs.ListRuns(ctx, limit)
}
