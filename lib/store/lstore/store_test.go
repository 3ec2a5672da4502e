package lstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapleFactory() db.KVDB {
	return maple.NewMapleDB(nil)
}

// frozenClock returns a clock that always reports the same time
func frozenClock(ms int64) func() int64 {
	return func() int64 { return ms }
}

func newStore(t *testing.T, opts *Options) store.IStore {
	t.Helper()
	s, err := NewLocalStore(mapleFactory, opts)
	require.NoError(t, err)
	return s
}

func TestUpsertGet(t *testing.T) {
	s := newStore(t, nil)
	defer s.Close()

	_, loaded, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.Upsert("k", []byte("v1")))
	value, loaded, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, s.Upsert("k", []byte("v2")))
	value, _, _ = s.Get("k")
	assert.Equal(t, []byte("v2"), value)
}

func TestRemoveWritesTombstone(t *testing.T) {
	s := newStore(t, &Options{Now: frozenClock(1000)})
	defer s.Close()

	// never written
	_, loaded, err := s.LastUpdateTimeMillis("k")
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.Upsert("k", []byte("v")))
	require.NoError(t, s.Remove("k"))

	_, loaded, err = s.Get("k")
	require.NoError(t, err)
	assert.False(t, loaded, "tombstoned key must not be loaded")

	ts, loaded, err := s.LastUpdateTimeMillis("k")
	require.NoError(t, err)
	assert.True(t, loaded, "tombstone must keep the timestamp visible")
	assert.Equal(t, int64(1001), ts)
}

func TestRemoveNeverWritten(t *testing.T) {
	s := newStore(t, &Options{Now: frozenClock(5)})
	defer s.Close()

	require.NoError(t, s.Remove("ghost"))

	_, loaded, _ := s.Get("ghost")
	assert.False(t, loaded)
	ts, loaded, _ := s.LastUpdateTimeMillis("ghost")
	assert.True(t, loaded)
	assert.Equal(t, int64(5), ts)
}

func TestClockIsMonotonic(t *testing.T) {
	now := int64(100)
	s := newStore(t, &Options{Now: func() int64 { return now }})
	defer s.Close()

	require.NoError(t, s.Remove("k"))
	first, _, _ := s.LastUpdateTimeMillis("k")

	// the wall clock goes backwards
	now = 50
	require.NoError(t, s.Remove("k"))
	second, _, _ := s.LastUpdateTimeMillis("k")
	assert.Greater(t, second, first, "repeated deletes must advance the timestamp")

	now = 500
	require.NoError(t, s.Upsert("k", []byte("v")))
	third, _, _ := s.LastUpdateTimeMillis("k")
	assert.Equal(t, int64(500), third)
}

func TestConcurrentClock(t *testing.T) {
	s := newStore(t, &Options{Now: frozenClock(1)})
	defer s.Close()

	const workers, writes = 8, 500
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				_ = s.Remove("shared")
			}
		}()
	}
	wg.Wait()

	ts, _, _ := s.LastUpdateTimeMillis("shared")
	assert.Equal(t, int64(workers*writes), ts, "every write must get its own timestamp")
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s := newStore(t, &Options{DataDir: dir, Now: frozenClock(10_000)})
	require.NoError(t, s.Upsert("live", []byte("value")))
	require.NoError(t, s.Upsert("dead", []byte("value")))
	require.NoError(t, s.Remove("dead"))
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, SnapshotFile))

	// restart with a clock that lags behind the snapshot
	s = newStore(t, &Options{DataDir: dir, Now: frozenClock(1)})
	defer s.Close()

	value, loaded, err := s.Get("live")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, []byte("value"), value)

	_, loaded, _ = s.Get("dead")
	assert.False(t, loaded)
	deadTs, loaded, _ := s.LastUpdateTimeMillis("dead")
	assert.True(t, loaded)

	require.NoError(t, s.Upsert("dead", []byte("again")))
	ts, _, _ := s.LastUpdateTimeMillis("dead")
	assert.Greater(t, ts, deadTs, "clock must continue after the loaded records")
}

func TestCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFile), []byte("garbage"), 0o644))

	_, err := NewLocalStore(mapleFactory, &Options{DataDir: dir})
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCInternalError, storeErr.Code)
}

func TestCloseTwiceIsSwallowed(t *testing.T) {
	s := newStore(t, &Options{DataDir: t.TempDir()})
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestCloseWithMissingDataDirIsSwallowed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := newStore(t, &Options{DataDir: dir})
	require.NoError(t, s.Upsert("k", []byte("v")))

	require.NoError(t, os.RemoveAll(dir))
	assert.NoError(t, s.Close())
}

func TestOperationsAfterClose(t *testing.T) {
	s := newStore(t, nil)
	require.NoError(t, s.Close())

	var storeErr *store.Error

	_, _, err := s.Get("k")
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCClosed, storeErr.Code)

	err = s.Upsert("k", nil)
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCClosed, storeErr.Code)

	err = s.Remove("k")
	require.True(t, errors.As(err, &storeErr))

	_, _, err = s.LastUpdateTimeMillis("k")
	require.True(t, errors.As(err, &storeErr))

	_, err = s.GetDBInfo()
	require.True(t, errors.As(err, &storeErr))
}

func TestGetDBInfo(t *testing.T) {
	s := newStore(t, nil)
	defer s.Close()

	require.NoError(t, s.Upsert("k", []byte("v")))
	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, db.ImplMaple, info.DbType)
}

// crash drops the store without Close, like a killed process
func crash(t *testing.T, s store.IStore) {
	t.Helper()
	require.NoError(t, s.(*storeImpl).wlog.close())
}

func TestWritesSurviveCrash(t *testing.T) {
	dir := t.TempDir()

	s := newStore(t, &Options{DataDir: dir, Now: frozenClock(500)})
	require.NoError(t, s.Upsert("live", []byte("value")))
	require.NoError(t, s.Upsert("dead", []byte("value")))
	require.NoError(t, s.Remove("dead"))
	require.NoError(t, s.Upsert("empty", []byte{}))
	crash(t, s)

	s = newStore(t, &Options{DataDir: dir, Now: frozenClock(1)})
	defer s.Close()

	value, loaded, err := s.Get("live")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, []byte("value"), value)

	_, loaded, _ = s.Get("dead")
	assert.False(t, loaded)
	deadTs, loaded, _ := s.LastUpdateTimeMillis("dead")
	assert.True(t, loaded, "tombstone must survive the crash")
	assert.Equal(t, int64(502), deadTs)

	value, loaded, _ = s.Get("empty")
	assert.True(t, loaded)
	assert.Empty(t, value)

	require.NoError(t, s.Upsert("live", []byte("again")))
	ts, _, _ := s.LastUpdateTimeMillis("live")
	assert.Greater(t, ts, int64(503), "clock must continue after the replayed writes")
}

func TestLogReplaysOnTopOfSnapshot(t *testing.T) {
	dir := t.TempDir()

	s := newStore(t, &Options{DataDir: dir, Now: frozenClock(100)})
	require.NoError(t, s.Upsert("a", []byte("snap")))
	require.NoError(t, s.Upsert("b", []byte("snap")))
	require.NoError(t, s.Close())

	s = newStore(t, &Options{DataDir: dir, Now: frozenClock(100)})
	require.NoError(t, s.Upsert("a", []byte("log")))
	require.NoError(t, s.Remove("b"))
	crash(t, s)

	s = newStore(t, &Options{DataDir: dir})
	defer s.Close()

	value, _, _ := s.Get("a")
	assert.Equal(t, []byte("log"), value)
	_, loaded, _ := s.Get("b")
	assert.False(t, loaded)
}

func TestCloseCompactsLog(t *testing.T) {
	dir := t.TempDir()

	s := newStore(t, &Options{DataDir: dir, SyncWrites: true})
	require.NoError(t, s.Upsert("k", []byte("v")))

	info, err := os.Stat(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NoError(t, s.Close())

	info, err = os.Stat(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "log must be empty once the snapshot holds its writes")

	s = newStore(t, &Options{DataDir: dir})
	defer s.Close()
	value, loaded, _ := s.Get("k")
	assert.True(t, loaded)
	assert.Equal(t, []byte("v"), value)
}

func TestTornLogTailIsDropped(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, LogFile)

	s := newStore(t, &Options{DataDir: dir})
	require.NoError(t, s.Upsert("k1", []byte("v1")))
	require.NoError(t, s.Upsert("k2", []byte("v2")))
	crash(t, s)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	intact := info.Size()

	// half written entry
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{40, 0, 0, 0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s = newStore(t, &Options{DataDir: dir})
	for _, k := range []string{"k1", "k2"} {
		_, loaded, _ := s.Get(k)
		assert.True(t, loaded, k)
	}

	info, err = os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, intact, info.Size(), "torn tail must be cut off")

	// appends after the cut are replayed as well
	require.NoError(t, s.Upsert("k3", []byte("v3")))
	crash(t, s)

	s = newStore(t, &Options{DataDir: dir})
	defer s.Close()
	value, loaded, _ := s.Get("k3")
	assert.True(t, loaded)
	assert.Equal(t, []byte("v3"), value)
}

func TestCorruptLogEntryStopsReplay(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, LogFile)

	s := newStore(t, &Options{DataDir: dir})
	require.NoError(t, s.Upsert("first", []byte("v")))
	info, err := os.Stat(logPath)
	require.NoError(t, err)
	firstEnd := info.Size()
	require.NoError(t, s.Upsert("second", []byte("v")))
	crash(t, s)

	// flip a byte in the payload of the second entry
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(logPath, data, 0o644))

	s = newStore(t, &Options{DataDir: dir})
	defer s.Close()

	_, loaded, _ := s.Get("first")
	assert.True(t, loaded)
	_, loaded, _ = s.Get("second")
	assert.False(t, loaded)

	info, err = os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, firstEnd, info.Size())
}

func TestLogEntryLongerThanFileIsDropped(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, LogFile)

	s := newStore(t, &Options{DataDir: dir})
	require.NoError(t, s.Upsert("k", []byte("v")))
	crash(t, s)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	intact := info.Size()

	// complete header announcing a ~4GiB payload
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xf0, 0xff, 0xff, 0xff, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s = newStore(t, &Options{DataDir: dir})
	defer s.Close()
	_, loaded, _ := s.Get("k")
	assert.True(t, loaded)

	info, err = os.Stat(logPath)
	require.NoError(t, err)
	assert.Equal(t, intact, info.Size())
}
