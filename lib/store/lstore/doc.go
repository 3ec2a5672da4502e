// Package lstore implements the local record store of a qKV node based on the
// store.IStore interface. It wraps any db.KVDB implementation and owns the clock
// used to stamp writes.
//
// Implementation Details:
//
//   - Timestamps: every write is stamped with max(now, last+1) in unix millis.
//     Two writes on the same node never share a timestamp, so a delete directly
//     after a put (or a second delete) always supersedes the previous write.
//
//   - Tombstones: Remove writes a tombstone. Get reports tombstoned keys as not
//     loaded while LastUpdateTimeMillis still reports their timestamp.
//
//   - Persistence: with Options.DataDir set, the snapshot <data-dir>/qkv.snapshot
//     is loaded on start and written on Close (temp file + rename).
//
//   - Shutdown: closing an already closed store returns nil. A data dir that no
//     longer exists at Close is logged and ignored. Every other persistence
//     failure is returned.
//
// Thread Safety:
//
//	All operations are thread-safe. Close waits for in-flight operations, any
//	operation after Close fails with store.RetCClosed.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s, err := lstore.NewLocalStore(factory, &lstore.Options{DataDir: "./data"})
//	if err != nil {
//	  panic(err)
//	}
//	defer s.Close()
//
//	_ = s.Upsert("user:1", []byte("alice"))
//	value, exists, err := s.Get("user:1")
package lstore
