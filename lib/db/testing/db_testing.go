package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Upsert&Get", func(t *testing.T) {
			testUpsertGet(t, factory())
		})

		t.Run("Tombstone", func(t *testing.T) {
			testTombstone(t, factory())
		})

		t.Run("TombstoneNeverWritten", func(t *testing.T) {
			testTombstoneNeverWritten(t, factory())
		})

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadInvalid", func(t *testing.T) {
			testLoadInvalid(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpsertGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Upsert(testKey, testValue1, 1)

	record, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Upsert", testKey)
	}
	if !bytes.Equal(record.Value, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, record.Value)
	}
	if record.Timestamp != 1 || record.Tombstone {
		t.Errorf("Expected live record with timestamp 1, got %+v", record)
	}

	database.Upsert(testKey, testValue2, 2)

	record, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Upsert", testKey)
	}
	if !bytes.Equal(record.Value, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, record.Value)
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrieved, _ := database.Get(testKey)
	retrieved.Value[0] = 'X'

	original, _ := database.Get(testKey)
	if bytes.Equal(retrieved.Value, original.Value) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	database.Upsert("mutable-key", input, 3)
	input[0] = 'X'
	stored, _ := database.Get("mutable-key")
	if string(stored.Value) != "mutable" {
		t.Errorf("Upsert should copy the value, got %s", stored.Value)
	}
}

func testTombstone(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone|db.FeatureGet)

	key := "tombstone-key"
	database.Upsert(key, []byte("value"), 10)
	database.Tombstone(key, 20)

	record, exists := database.Get(key)
	if !exists {
		t.Fatalf("Tombstoned key %s must still be loaded", key)
	}
	if !record.Tombstone {
		t.Errorf("Expected tombstone flag to be set")
	}
	if len(record.Value) != 0 {
		t.Errorf("Expected empty value for tombstone, got %s", record.Value)
	}
	if record.Timestamp != 20 {
		t.Errorf("Expected timestamp 20, got %d", record.Timestamp)
	}

	// a second tombstone advances the timestamp
	database.Tombstone(key, 30)
	record, _ = database.Get(key)
	if record.Timestamp != 30 || !record.Tombstone {
		t.Errorf("Expected tombstone at 30, got %+v", record)
	}

	// an upsert resurrects the key
	database.Upsert(key, []byte("again"), 40)
	record, _ = database.Get(key)
	if record.Tombstone || string(record.Value) != "again" || record.Timestamp != 40 {
		t.Errorf("Expected live value 'again' at 40, got %+v", record)
	}
}

func testTombstoneNeverWritten(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureTombstone|db.FeatureGet)

	database.Tombstone("never-written", 5)

	record, exists := database.Get("never-written")
	if !exists {
		t.Fatalf("Tombstone on a never written key must create the record")
	}
	if !record.Tombstone || record.Timestamp != 5 {
		t.Errorf("Expected tombstone at 5, got %+v", record)
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone|db.FeatureGet)

	key := "stale-key"
	database.Upsert(key, []byte("new"), 100)

	database.Upsert(key, []byte("old"), 50)
	record, _ := database.Get(key)
	if string(record.Value) != "new" || record.Timestamp != 100 {
		t.Errorf("Stale upsert must be ignored, got %+v", record)
	}

	database.Tombstone(key, 99)
	record, _ = database.Get(key)
	if record.Tombstone {
		t.Errorf("Stale tombstone must be ignored, got %+v", record)
	}

	// equal timestamps overwrite
	database.Upsert(key, []byte("same"), 100)
	record, _ = database.Get(key)
	if string(record.Value) != "same" {
		t.Errorf("Write with equal timestamp must overwrite, got %+v", record)
	}

	database.Tombstone(key, 200)
	database.Upsert(key, []byte("late"), 150)
	record, _ = database.Get(key)
	if !record.Tombstone || record.Timestamp != 200 {
		t.Errorf("Stale upsert must not resurrect a newer tombstone, got %+v", record)
	}
}

func testWriteIdx(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone)

	if database.WriteIdx() != 0 {
		t.Errorf("Expected initial write index 0, got %d", database.WriteIdx())
	}

	database.Upsert("a", []byte("1"), 10)
	database.Tombstone("b", 30)
	database.Upsert("c", []byte("3"), 20)

	if database.WriteIdx() != 30 {
		t.Errorf("Expected write index 30, got %d", database.WriteIdx())
	}

	database.SetWriteIdx(25)
	if database.WriteIdx() != 30 {
		t.Errorf("Write index must never decrease, got %d", database.WriteIdx())
	}

	database.SetWriteIdx(40)
	if database.WriteIdx() != 40 {
		t.Errorf("Expected write index 40, got %d", database.WriteIdx())
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone|db.FeatureGet)
	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		database.Upsert(key, value, int64(i+1))
		if i%3 == 0 {
			database.Tombstone(key, int64(i+numEntries))
		}
	}

	// data in database2 must be replaced by Load
	database2.Upsert("leftover", []byte("x"), 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if _, exists := database2.Get("leftover"); exists {
		t.Errorf("Load must replace existing records")
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expected, _ := database.Get(key)

		actual, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if actual.Tombstone != expected.Tombstone || actual.Timestamp != expected.Timestamp {
			t.Errorf("Metadata mismatch for key %s: expected %+v, got %+v", key, expected, actual)
		}
		if !bytes.Equal(actual.Value, expected.Value) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected.Value, actual.Value)
		}
	}

	if database2.WriteIdx() != database.WriteIdx() {
		t.Errorf("Expected write index %d after Load, got %d", database.WriteIdx(), database2.WriteIdx())
	}
}

func testLoadInvalid(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureGet|db.FeatureLoad)

	database.Upsert("keep", []byte("me"), 1)

	if err := database.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected error when loading garbage")
	}
	if err := database.Load(bytes.NewReader(nil)); err == nil {
		t.Errorf("Expected error when loading an empty reader")
	}

	if record, exists := database.Get("keep"); !exists || string(record.Value) != "me" {
		t.Errorf("A failed Load must leave the database untouched")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	database.Upsert("", emptyKeyValue, 1)

	record, exists := database.Get("")
	if !exists {
		t.Errorf("Empty key not found after Upsert")
	} else if !bytes.Equal(record.Value, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	database.Upsert("nil-value-key", nil, 1)
	record, exists = database.Get("nil-value-key")
	if !exists {
		t.Errorf("Key for nil value not found after Upsert")
	} else if len(record.Value) != 0 || record.Tombstone {
		t.Errorf("Nil value resulted in unexpected record: %+v", record)
	}

	largeKey := string(make([]byte, 1000))
	database.Upsert(largeKey, []byte("value for large key"), 1)
	if record, exists = database.Get(largeKey); !exists || string(record.Value) != "value for large key" {
		t.Errorf("Large key not found after Upsert")
	}

	largeValue := make([]byte, 8*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	database.Upsert("large-value-key", largeValue, 1)
	if record, exists = database.Get("large-value-key"); !exists || !bytes.Equal(record.Value, largeValue) {
		t.Errorf("Large value mismatch")
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone|db.FeatureGet)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		database.Upsert(key, []byte(fmt.Sprintf("value-%d", i)), 1)
	}

	for i := 0; i < numKeys; i += 2 {
		database.Tombstone(fmt.Sprintf("%s%d", prefix, i), 10)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		record, exists := database.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}

		if i%2 == 0 {
			if !record.Tombstone {
				t.Errorf("Key %s should be tombstoned", key)
			}
		} else if string(record.Value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Value for key %s does not match, got %s", key, record.Value)
		}
	}
}

func testConcurrentUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUpsert|db.FeatureTombstone|db.FeatureGet)

	numWorkers := 8
	opsPerWorker := 2000
	// coprime to 10 so every key sees upserts, tombstones and reads
	hotKeys := 51

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("hot-key-%d", i%hotKeys)
				ts := int64(i*numWorkers + workerId + 1)
				switch i % 10 {
				case 9:
					database.Tombstone(key, ts)
				case 7, 8:
					database.Get(key)
				default:
					database.Upsert(key, []byte(fmt.Sprintf("%d", ts)), ts)
				}
			}
		}(w)
	}

	wg.Wait()

	// the highest timestamp written to each key must have won
	for k := 0; k < hotKeys; k++ {
		key := fmt.Sprintf("hot-key-%d", k)

		var (
			maxTs     int64
			tombstone bool
		)
		for w := 0; w < numWorkers; w++ {
			for i := k; i < opsPerWorker; i += hotKeys {
				if i%10 == 7 || i%10 == 8 {
					continue
				}
				if ts := int64(i*numWorkers + w + 1); ts > maxTs {
					maxTs = ts
					tombstone = i%10 == 9
				}
			}
		}

		record, exists := database.Get(key)
		if maxTs == 0 {
			if exists {
				t.Errorf("Key %s was only read but exists: %+v", key, record)
			}
			continue
		}
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if record.Timestamp != maxTs || record.Tombstone != tombstone {
			t.Errorf("Key %s: expected ts=%d tombstone=%t, got %+v", key, maxTs, tombstone, record)
		}
		if !tombstone && string(record.Value) != fmt.Sprintf("%d", maxTs) {
			t.Errorf("Key %s: expected value %d, got %s", key, maxTs, record.Value)
		}
	}
}
