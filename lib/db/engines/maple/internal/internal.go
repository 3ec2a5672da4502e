package internal

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (value with metadata)
// --------------------------------------------------------------------------

// Entry stores a value with its write timestamp and tombstone flag
type Entry struct {
	Value     []byte // Stored data (nil for tombstones)
	Timestamp int64  // Unix millis of the last applied write
	Tombstone bool   // Whether the key was deleted
}

// Flags encodes the boolean metadata of the entry for persistence
func (e Entry) Flags() uint8 {
	if e.Tombstone {
		return flagTombstone
	}
	return 0
}

// EntryFromFlags restores the boolean metadata written by Flags
func EntryFromFlags(flags uint8, value []byte, ts int64) Entry {
	return Entry{
		Value:     value,
		Timestamp: ts,
		Tombstone: flags&flagTombstone != 0,
	}
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry{Len: %d, Timestamp: %d, Tombstone: %t}", len(e.Value), e.Timestamp, e.Tombstone)
}

const flagTombstone uint8 = 1 << 0

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database.
// The full key is stored so that hash collisions can not mix up records.
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of all records (live and tombstoned)
}

// NewShard creates a new, empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the appropriate shard for a given key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
