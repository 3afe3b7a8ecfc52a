// Package store provides the durable local record store. It owns the
// record lifecycle: local id allocation, sync-state tracking, and the
// canonical ids handed back by the remote service.
package store

import (
	"fmt"
	"time"

	"github.com/tildaslashalef/fieldsync/internal/ulid"
)

// SyncState tracks whether a record has been acknowledged by the server
type SyncState string

const (
	// SyncStatePending marks a record not yet acknowledged by the server
	SyncStatePending SyncState = "pending"
	// SyncStateSynced marks a record acknowledged by the server
	SyncStateSynced SyncState = "synced"
)

// ReferenceKind identifies a reference record collection
type ReferenceKind string

const (
	// KindFarmType is the farm type reference collection
	KindFarmType ReferenceKind = "farm_type"
	// KindCrop is the crop reference collection
	KindCrop ReferenceKind = "crop"
)

// tableForKind maps a reference kind to its backing table
func tableForKind(kind ReferenceKind) (string, error) {
	switch kind {
	case KindFarmType:
		return "farm_types", nil
	case KindCrop:
		return "crops", nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
}

// localIDForKind allocates a new prefixed local id for a reference kind
func localIDForKind(kind ReferenceKind) string {
	if kind == KindCrop {
		return ulid.CropID()
	}
	return ulid.FarmTypeID()
}

// ReferenceRecord is a reusable classification entity (farm type or crop)
// that farmer records point to.
type ReferenceRecord struct {
	LocalID     string        `json:"local_id"`
	CanonicalID *int64        `json:"canonical_id,omitempty"`
	Kind        ReferenceKind `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	SyncState   SyncState     `json:"sync_state"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewReferenceRecord creates a pending reference record with a fresh local id
func NewReferenceRecord(kind ReferenceKind, name, description string) *ReferenceRecord {
	return &ReferenceRecord{
		LocalID:     localIDForKind(kind),
		Kind:        kind,
		Name:        name,
		Description: description,
		SyncState:   SyncStatePending,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsPending reports whether the record still awaits server acknowledgement
func (r *ReferenceRecord) IsPending() bool {
	return r.SyncState == SyncStatePending
}

// FarmerRecord is a field-collected submission referencing a farm type and
// a crop by their local ids. The references are resolved to canonical ids
// at upload time.
type FarmerRecord struct {
	LocalID         string    `json:"local_id"`
	CanonicalID     *int64    `json:"canonical_id,omitempty"`
	FarmerName      string    `json:"farmer_name"`
	NationalID      string    `json:"national_id"`
	FarmTypeLocalID string    `json:"farm_type_local_id"`
	CropLocalID     string    `json:"crop_local_id"`
	Location        string    `json:"location,omitempty"`
	SyncState       SyncState `json:"sync_state"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewFarmerRecord creates a pending farmer record with a fresh local id
func NewFarmerRecord(farmerName, nationalID, farmTypeLocalID, cropLocalID, location string) *FarmerRecord {
	return &FarmerRecord{
		LocalID:         ulid.FarmerRecordID(),
		FarmerName:      farmerName,
		NationalID:      nationalID,
		FarmTypeLocalID: farmTypeLocalID,
		CropLocalID:     cropLocalID,
		Location:        location,
		SyncState:       SyncStatePending,
		CreatedAt:       time.Now().UTC(),
	}
}

// IsPending reports whether the record still awaits server acknowledgement
func (r *FarmerRecord) IsPending() bool {
	return r.SyncState == SyncStatePending
}

// FarmerRecordView is a farmer record joined with human-readable reference
// names for display. Names fall back to a "#<local id>" placeholder when the
// join target is absent.
type FarmerRecordView struct {
	FarmerRecord
	FarmTypeName string `json:"farm_type_name"`
	CropName     string `json:"crop_name"`
}
