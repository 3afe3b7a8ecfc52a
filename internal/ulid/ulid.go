// Package ulid provides prefixed local identifier generation on top of
// github.com/oklog/ulid/v2.
//
// Local ids are assigned exactly once when a record is created on the
// device and never change afterwards; they are the idempotency key for
// upload retries. ULIDs are lexicographically sortable by creation time,
// which keeps creation-order scans cheap in SQLite.
package ulid

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for the different record collections
const (
	// PrefixFarmType for farm type reference records
	PrefixFarmType = "ft"

	// PrefixCrop for crop reference records
	PrefixCrop = "crop"

	// PrefixFarmerRecord for farmer submission records
	PrefixFarmerRecord = "fr"

	// PrefixSyncRun for reconciliation run records
	PrefixSyncRun = "run"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID wraps ulid.ULID with an optional domain prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// Generate creates a new ULID with the current timestamp
func Generate() ULID {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a prefix
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID with a specific timestamp
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse parses a ULID string, handling both plain and prefixed forms
// (e.g. "ft-01AN4Z07BY79KA1307SR9X4MV3").
func Parse(id string) (ULID, error) {
	var rawID, prefix string

	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		prefix = id[:i]
		rawID = id[i+1:]
	} else {
		rawID = id
	}

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, err
	}

	return ULID{parsed, prefix}, nil
}

// Validate checks whether a string is a valid (optionally prefixed) ULID
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// IsZero returns true if the ULID is the zero value
func (u ULID) IsZero() bool {
	return u.ULID == ulid.ULID{}
}

// Prefix returns the prefix of the ULID
func (u ULID) Prefix() string {
	return u.prefix
}

// Time returns the timestamp component of the ULID
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

// String returns the string representation, including the prefix when present
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}

// Value implements driver.Valuer; ULIDs are stored as strings
func (u ULID) Value() (driver.Value, error) {
	return u.String(), nil
}

// Scan implements sql.Scanner
func (u *ULID) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		return nil
	case string:
		parsed, err := Parse(src)
		if err != nil {
			return err
		}
		*u = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(src))
		if err != nil {
			return err
		}
		*u = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into ULID", src)
}

// FarmTypeID generates a new local id for a farm type record
func FarmTypeID() string {
	return GenerateWithPrefix(PrefixFarmType).String()
}

// CropID generates a new local id for a crop record
func CropID() string {
	return GenerateWithPrefix(PrefixCrop).String()
}

// FarmerRecordID generates a new local id for a farmer submission
func FarmerRecordID() string {
	return GenerateWithPrefix(PrefixFarmerRecord).String()
}

// SyncRunID generates a new id for a reconciliation run
func SyncRunID() string {
	return GenerateWithPrefix(PrefixSyncRun).String()
}
