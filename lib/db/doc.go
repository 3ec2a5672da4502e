// Package db provides a standardized interface for the record storage of a qKV node.
//
// Every key maps to a Record: the value, the unix millisecond timestamp of the
// last write and a tombstone flag. Deletes never remove a key. They replace the
// record with a tombstone so that the deletion stays visible to the quorum
// coordinator, which distinguishes "deleted" from "never written".
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides Upsert, Tombstone and Get plus the persistence operations Save and Load.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports size statistics,
//     implementation type and implementation-specific metadata. Size statistics are
//     estimated.
//
// Note on Timestamps:
//   - Last write wins: a write whose timestamp is older than the stored record's
//     timestamp is ignored. Equal timestamps overwrite.
//   - WriteIdx tracks the highest timestamp applied so far and only increases.
//   - Tombstones are never collected. Keys that were deleted once stay in memory.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/qKV/lib/db/engines/maple) provides a
// sharded in-memory implementation of the KVDB interface with binary persistence.
//
// The util package (github.com/ValentinKolb/qKV/lib/db/util) provides hashing and
// size statistics helpers for implementations.
//
// The testing package (github.com/ValentinKolb/qKV/lib/db/testing) provides
// standardized tests and benchmarks for implementations of db.KVDB.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
