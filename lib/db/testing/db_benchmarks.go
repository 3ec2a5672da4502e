package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Upsert", func(b *testing.B) {
		benchmarkUpsert(b, factory())
	})

	b.Run("UpsertExisting", func(b *testing.B) {
		benchmarkUpsertExisting(b, factory())
	})

	b.Run("UpsertLargeValue", func(b *testing.B) {
		benchmarkUpsertLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, factory())
	})

	b.Run("Tombstone", func(b *testing.B) {
		benchmarkTombstone(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// timestamps are shared between the parallel goroutines so that no write is stale
var benchClock atomic.Int64

// Benchmark for Upsert operation
func benchmarkUpsert(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Upsert(key, value, benchClock.Add(1))
			counter++
		}
	})
}

// Benchmark for Upsert operation with existing keys
func benchmarkUpsertExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert)

	// Prepare data
	numKeys := b.N
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Upsert(key, value, benchClock.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Upsert(key, value, benchClock.Add(1))
			counter++
		}
	})
}

// Benchmark for Upsert operation with large values
func benchmarkUpsertLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			largeValue := make([]byte, 1*1024*1024) // 1MB
			database.Upsert(key, largeValue, benchClock.Add(1))
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert|db.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Upsert(key, value, benchClock.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			database.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for Get on missing keys
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("missing-key-%d", counter))
			counter++
		}
	})
}

// Parallel benchmarking for Tombstone operation
func benchmarkTombstone(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert|db.FeatureTombstone)

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Upsert(fmt.Sprintf("test-key-%d", i), []byte("value"), benchClock.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Tombstone(fmt.Sprintf("test-key-%d", counter%numKeys), benchClock.Add(1))
			counter++
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert|db.FeatureSave|db.FeatureLoad)

	// Create a database with some data
	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Upsert(key, value, benchClock.Add(1))
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			loadDB.Load(bytes.NewReader(data))
			loadDB.Close()
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUpsert|db.FeatureGet|db.FeatureTombstone)

	// Number of pre-populated keys
	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare initial data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Upsert(keys[i], value, benchClock.Add(1))
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys

			// For every 10th operation, use a completely new key
			var key string
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d", localCounter)
			} else {
				key = keys[idx]
			}

			switch localCounter % 4 {
			case 0, 1: // Get
				database.Get(key)
			case 2: // Upsert
				value := []byte(fmt.Sprintf("mixed-value-%d", localCounter))
				database.Upsert(key, value, benchClock.Add(1))
			case 3: // Tombstone
				database.Tombstone(key, benchClock.Add(1))
			}

			localCounter++
		}
	})
}
