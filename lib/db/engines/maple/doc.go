// Package maple implements the in-memory record store behind a qKV node.
// It provides a complete implementation of the db.KVDB interface with a focus
// on concurrent access and a compact binary snapshot format.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages
//     shards and tracks the highest applied timestamp (the write index). The write
//     index is never generated here: callers pass the unix millisecond timestamp of
//     every write, which lets the local store adapter own the clock.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Keys are hashed
//     with a seeded FNV-1a hash to pick a shard. The full key is stored in the map.
//
//   - Entry: The stored value, its timestamp and the tombstone flag.
//
// Write Semantics:
//
//   - Last write wins: Upsert and Tombstone replace the stored entry unless the stored
//     entry carries a newer timestamp. Such stale writes are dropped silently.
//   - Tombstones keep the key with an empty value. They are never collected.
//
// Persistence Format (little endian):
//
//	magic "MAPLEDB\x00" | version uint8 | seed uint64 | count uint64 |
//	count x ( keyLen uint32 | key | timestamp int64 | flags uint8 | valueLen uint32 | value )
//
// Save takes a fuzzy snapshot and may run concurrently with writes. Load replaces
// the whole database and must not run concurrently with other operations.
//
// Usage Example:
//
//	store := maple.NewMapleDB(nil)
//	store.Upsert("user:1", []byte("alice"), time.Now().UnixMilli())
//	record, ok := store.Get("user:1")
package maple
