// Package store provides the interface between a qKV replica and its local records.
// It serves as an abstraction layer over the lower-level db.KVDB implementations and
// adds timestamp management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: Get, Upsert, Remove and LastUpdateTimeMillis. Remove never
//     deletes physically, it writes a tombstone so that replicas can tell a deleted
//     key from a key they never saw.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     (RetCInternalError, RetCUnsupportedOperation, RetCInvalidOperation, RetCClosed)
//     and descriptive messages.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//	- Local Store (lstore): Wraps a db.KVDB instance, stamps writes with a monotonic
//	  millisecond clock and optionally persists a snapshot in a data directory.
//	  Available in the "github.com/ValentinKolb/qKV/lib/store/lstore" package.
package store
