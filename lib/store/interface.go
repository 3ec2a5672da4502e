package store

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the interface a qKV node uses to access its local records.
// The store owns the clock: every write is stamped with the current unix time in
// milliseconds. All methods return a *Error on failure.
type IStore interface {
	// Get returns the value for a key. loaded is false if the key was never
	// written or if its latest write is a tombstone.
	Get(key string) (value []byte, loaded bool, err error)
	// Upsert stores the value, stamps it with the current time and clears a tombstone.
	Upsert(key string, value []byte) (err error)
	// Remove writes a tombstone for the key (empty value, current time).
	// Nothing is physically deleted.
	Remove(key string) (err error)
	// LastUpdateTimeMillis returns the timestamp of the latest write to the key,
	// including tombstones. loaded is false only if the key was never written.
	LastUpdateTimeMillis(key string) (ts int64, loaded bool, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the store and persists it if it is backed by a data directory.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCClosed                              // 4: The store was already closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
