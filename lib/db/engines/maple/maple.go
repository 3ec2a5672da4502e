package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/qKV/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Database version (4 = full keys, millis timestamps, tombstones)
	maxKeyLen    = 1 << 16       // Upper bound for keys read from a snapshot
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory record store
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for the shard hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Int64      // Highest applied timestamp
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardFor returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Upsert stores value for key and clears a tombstone.
// Writes older than the stored record are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Upsert(key string, value []byte, ts int64) {
	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.compute(key, internal.Entry{
		Value:     valueCopy,
		Timestamp: ts,
	})
}

// Tombstone marks key as deleted at ts. The record is kept (with an empty value)
// so that the deletion stays observable.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Tombstone(key string, ts int64) {
	maple.compute(key, internal.Entry{
		Value:     nil,
		Timestamp: ts,
		Tombstone: true,
	})
}

// compute is the shared implementation of Upsert and Tombstone.
// It replaces the stored entry with next unless the stored entry is newer.
//
// Thread-safety: This function uses xsync's Compute for an atomic conditional update.
func (maple *mapleImpl) compute(key string, next internal.Entry) {

	// update the current index
	maple.SetWriteIdx(next.Timestamp)

	shard := maple.shardFor(key)
	shard.Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		// If the key doesn't exist or the new write is newer or equal, update
		if !loaded || next.Timestamp >= old.Timestamp {
			return next, false
		}

		// Otherwise, keep the old entry (stale writes are ignored)
		return old, false
	})
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the record for a key. Tombstoned records are returned as well.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) (db.Record, bool) {
	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return db.Record{}, false
	}

	record := db.Record{
		Timestamp: entry.Timestamp,
		Tombstone: entry.Tombstone,
	}
	if !entry.Tombstone {
		record.Value = make([]byte, len(entry.Value))
		copy(record.Value, entry.Value)
	}
	return record, true
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	var dataEntries []entryToSave

	// Collect snapshots of all shards
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			// Create deep copy
			entryCopy := internal.Entry{
				Timestamp: entry.Timestamp,
				Tombstone: entry.Tombstone,
				Value:     make([]byte, len(entry.Value)),
			}
			copy(entryCopy.Value, entry.Value)

			dataEntries = append(dataEntries, entryToSave{key, entryCopy})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write seed
	if err := binary.Write(bw, binary.LittleEndian, maple.seed); err != nil {
		return err
	}

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(dataEntries))); err != nil {
		return err
	}

	// Write data entries
	for _, item := range dataEntries {

		// Write key length and key bytes
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}

		// Write timestamp
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Timestamp); err != nil {
			return err
		}

		// Write flags
		if err := bw.WriteByte(item.entry.Flags()); err != nil {
			return err
		}

		// Write value length
		valueLen := uint32(len(item.entry.Value))
		if err := binary.Write(bw, binary.LittleEndian, valueLen); err != nil {
			return err
		}

		// Write value bytes
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader. All current records are replaced.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read seed
	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}

	// Read data entries count
	var dataCount uint64
	if err := binary.Read(br, binary.LittleEndian, &dataCount); err != nil {
		return err
	}

	// Fill fresh shards first so that a corrupt snapshot leaves the database untouched
	shards := newShards(maple.numShards)
	var maxIndex int64

	for i := uint64(0); i < dataCount; i++ {
		// Read key
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		if keyLen > maxKeyLen {
			return fmt.Errorf("invalid key length %d at entry %d", keyLen, i)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(br, keyBytes); err != nil {
			return err
		}
		key := string(keyBytes)

		// Read timestamp
		var ts int64
		if err := binary.Read(br, binary.LittleEndian, &ts); err != nil {
			return err
		}

		// Read flags
		flags, err := br.ReadByte()
		if err != nil {
			return err
		}

		// Read value length
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}

		// Read value bytes
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		if ts > maxIndex {
			maxIndex = ts
		}

		shard := internal.GetShard(util.HashString(key, seed), shards)
		shard.Data.Store(key, internal.EntryFromFlags(flags, value, ts))
	}

	maple.shards = shards
	maple.seed = seed
	maple.currIndex.Store(0)

	// Update current index to the highest seen during load
	maple.SetWriteIdx(maxIndex)

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	// more stats
	mu := sync.Mutex{}
	samplesCount := 0
	tombstones := 0
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			tombstoneCount := 0
			s.Data.Range(func(key string, entry internal.Entry) bool {
				// track size in histogram
				histogram.AddSample(len(key) + len(entry.Value))

				if entry.Tombstone {
					tombstoneCount++
				}

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			samplesCount += count
			tombstones += tombstoneCount
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}

	// wait for all shards to finish
	wg.Wait()

	// calculate size
	entryOverhead := 17 // 8 bytes timestamp, 1 byte flags, 8 bytes slice header estimate
	medianSize := histogram.MedianEstimate() + entryOverhead
	avgSize := histogram.AverageSize() + entryOverhead

	// weighted estimate (60% median, 40% average)
	sizeBytes := (medianSize*60 + avgSize*40) / 100

	var tombstoneRatio float64
	if samplesCount > 0 {
		tombstoneRatio = float64(tombstones) / float64(samplesCount)
	}

	// Metadata for this specific database implementation
	meta := &struct {
		CurrentWriteIndex int64                  `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		TombstoneRatio    float64                `json:"tombstone_ratio"`
		SizeP99           int                    `json:"size_p99"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		TombstoneRatio:    tombstoneRatio, // share of sampled records that are tombstones
		SizeP99:           histogram.PercentileEstimate(99) + entryOverhead,
		Info:              "All values (including SizeBytes) are estimates and may vary depending on the database state.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureUpsert, db.FeatureTombstone,
			db.FeatureGet,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureUpsert |
		db.FeatureTombstone |
		db.FeatureGet |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close is a no-op, maple runs no background work
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the highest applied timestamp
// It only updates if the new value is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(ts int64) {
	for {
		curr := maple.currIndex.Load()
		if ts <= curr {
			return
		}
		if maple.currIndex.CompareAndSwap(curr, ts) {
			return
		}
	}
}

// WriteIdx returns the highest applied timestamp
func (maple *mapleImpl) WriteIdx() int64 {
	return maple.currIndex.Load()
}
