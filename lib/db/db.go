package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureUpsert    Feature = 1 << iota // Support for Upsert operations
	FeatureTombstone                     // Support for Tombstone operations
	FeatureGet                           // Support for Get operations
	FeatureSave                          // Support for Save operations
	FeatureLoad                          // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureUpsert:
		return "Upsert"
	case FeatureTombstone:
		return "Tombstone"
	case FeatureGet:
		return "Get"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Record is the stored state of a single key.
// A tombstoned record has an empty value and is reported as not found by
// the upper layers, but its timestamp stays visible.
type Record struct {
	Value     []byte
	Timestamp int64
	Tombstone bool
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations that keep
// a timestamped record per key.
// Any implementation of this interface must manage keys in a consistent way.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Upsert stores value under key with the timestamp ts (unix millis) and clears
	// a possible tombstone. If the stored record has a newer timestamp the write is ignored.
	Upsert(key string, value []byte, ts int64)

	// Tombstone marks the key as deleted at ts. The value is cleared but the record is kept.
	// A tombstone for a never written key creates the record.
	// If the stored record has a newer timestamp the write is ignored.
	Tombstone(key string, ts int64)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the record for an exact key, including tombstoned records.
	// The boolean return value is false only if the key was never written.
	Get(key string) (record Record, loaded bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the highest applied timestamp only if ts is greater than the current one.
	SetWriteIdx(ts int64)

	// WriteIdx returns the highest timestamp applied to the database.
	WriteIdx() (ts int64)

	// Close closes the database.
	Close() (err error)
}
