// Package sync runs the reconciliation protocol between the local record
// store and the remote field-data service: pending reference records are
// uploaded first, farmer records strictly after, and server-authoritative
// reference data is downloaded last.
package sync

import (
	"errors"
	"time"

	"github.com/tildaslashalef/fieldsync/internal/store"
)

var (
	// ErrNotConnected is returned when a run is triggered while the
	// service is unreachable; no partial run is attempted
	ErrNotConnected = errors.New("not connected")

	// ErrSyncInProgress is returned when a run is triggered while another
	// run is still executing
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnresolvedReference marks a farmer record whose referenced
	// reference record has no canonical id yet
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Phase is the orchestrator's position in a reconciliation run
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCollectingPending    Phase = "collecting_pending"
	PhaseUploadingReference   Phase = "uploading_reference_data"
	PhaseUploadingFarmerData  Phase = "uploading_farmer_data"
	PhaseDownloadingReference Phase = "downloading_reference_data"
)

// Trigger identifies what started a reconciliation run
type Trigger string

const (
	// TriggerManual is a run requested explicitly
	TriggerManual Trigger = "manual"
	// TriggerReconnect is a run started by an offline-to-online transition
	TriggerReconnect Trigger = "reconnect"
)

// ItemError records a per-record failure during a run. Item failures are
// isolated: they never abort the batch.
type ItemError struct {
	Kind    string `json:"kind"`
	LocalID string `json:"local_id"`
	Message string `json:"message"`
}

// Summary is the outcome of one reconciliation run. Success stays true for
// per-item failures; it flips only on a run-level failure.
type Summary struct {
	RunID                 string        `json:"run_id"`
	Trigger               Trigger       `json:"trigger"`
	FarmTypesUploaded     int           `json:"farm_types_uploaded"`
	CropsUploaded         int           `json:"crops_uploaded"`
	FarmerRecordsUploaded int           `json:"farmer_records_uploaded"`
	ReferenceDownloaded   int           `json:"reference_downloaded"`
	Errors                []ItemError   `json:"errors,omitempty"`
	Success               bool          `json:"success"`
	Err                   string        `json:"error,omitempty"`
	StartedAt             time.Time     `json:"started_at"`
	Duration              time.Duration `json:"duration"`
}

// addError records an isolated per-item failure
func (s *Summary) addError(kind store.ReferenceKind, localID string, err error) {
	s.Errors = append(s.Errors, ItemError{
		Kind:    string(kind),
		LocalID: localID,
		Message: err.Error(),
	})
}

// addFarmerError records an isolated farmer record failure
func (s *Summary) addFarmerError(localID string, err error) {
	s.Errors = append(s.Errors, ItemError{
		Kind:    "farmer_record",
		LocalID: localID,
		Message: err.Error(),
	})
}

// RunRecord is the persisted history entry for a reconciliation run
type RunRecord struct {
	ID                    string
	Trigger               Trigger
	Success               bool
	FarmTypesUploaded     int
	CropsUploaded         int
	FarmerRecordsUploaded int
	ReferenceDownloaded   int
	ErrorCount            int
	ErrorMessage          string
	StartedAt             time.Time
	CompletedAt           time.Time
}

// newRunRecord converts a completed summary into its history entry
func newRunRecord(summary *Summary) *RunRecord {
	return &RunRecord{
		ID:                    summary.RunID,
		Trigger:               summary.Trigger,
		Success:               summary.Success,
		FarmTypesUploaded:     summary.FarmTypesUploaded,
		CropsUploaded:         summary.CropsUploaded,
		FarmerRecordsUploaded: summary.FarmerRecordsUploaded,
		ReferenceDownloaded:   summary.ReferenceDownloaded,
		ErrorCount:            len(summary.Errors),
		ErrorMessage:          summary.Err,
		StartedAt:             summary.StartedAt,
		CompletedAt:           summary.StartedAt.Add(summary.Duration),
	}
}
