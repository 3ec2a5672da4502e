package lstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// SnapshotFile is the name of the snapshot inside the data directory
const SnapshotFile = "qkv.snapshot"

// Options configures the local store
type Options struct {
	// DataDir is the directory of the snapshot and the write log.
	// An empty DataDir keeps the store in memory only.
	DataDir string
	// SyncWrites fsyncs the write log after every write. Without it a write
	// survives a process crash but not a power loss.
	SyncWrites bool
	// Now returns the wall clock in unix millis (nil = time.Now)
	Now func() int64
}

type storeImpl struct {
	db    db.KVDB
	opts  Options
	clock atomic.Int64 // last issued timestamp
	wlog  *writeLog    // nil without data dir

	// closeMu guards closed against in-flight operations
	closeMu sync.RWMutex
	closed  bool
}

// NewLocalStore creates a new local store instance.
// If opts.DataDir is set the directory is created if needed, an existing
// snapshot is loaded and the write log is replayed on top of it.
func NewLocalStore(factory store.DBFactory, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}

	s := &storeImpl{
		db:   factory(),
		opts: *opts,
	}

	if s.opts.DataDir != "" {
		if err := os.MkdirAll(s.opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		if err := s.load(); err != nil {
			return nil, err
		}
		if err := s.openLog(); err != nil {
			return nil, err
		}
	}

	// continue the clock after the newest loaded record
	s.clock.Store(s.db.WriteIdx())

	return s, nil
}

// nextTimestamp returns max(now, last+1).
// Consecutive writes on this node therefore always get increasing timestamps.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) nextTimestamp() int64 {
	for {
		last := s.clock.Load()
		next := s.opts.Now()
		if next <= last {
			next = last + 1
		}
		if s.clock.CompareAndSwap(last, next) {
			return next
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.check(db.FeatureGet, "Get"); err != nil {
		return nil, false, err
	}

	record, ok := s.db.Get(key)
	if !ok || record.Tombstone {
		return nil, false, nil
	}
	return record.Value, true, nil
}

func (s *storeImpl) Upsert(key string, value []byte) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.check(db.FeatureUpsert, "Upsert"); err != nil {
		return err
	}

	ts := s.nextTimestamp()
	if err := s.logWrite(opUpsert, key, value, ts); err != nil {
		return err
	}
	s.db.Upsert(key, value, ts)
	return nil
}

func (s *storeImpl) Remove(key string) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.check(db.FeatureTombstone, "Remove"); err != nil {
		return err
	}

	ts := s.nextTimestamp()
	if err := s.logWrite(opTombstone, key, nil, ts); err != nil {
		return err
	}
	s.db.Tombstone(key, ts)
	return nil
}

func (s *storeImpl) LastUpdateTimeMillis(key string) (int64, bool, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.check(db.FeatureGet, "LastUpdateTimeMillis"); err != nil {
		return 0, false, err
	}

	record, ok := s.db.Get(key)
	if !ok {
		return 0, false, nil
	}
	return record.Timestamp, true, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return db.DatabaseInfo{}, store.NewError(store.RetCClosed, "store is closed")
	}
	return s.db.GetInfo(), nil
}

// Close persists the snapshot (if a data dir is configured), empties the
// write log and closes the db.
// Closing an already closed store and a data dir that vanished at shutdown are
// expected faults and only logged.
func (s *storeImpl) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		Logger.Debugf("store already closed")
		return nil
	}
	s.closed = true

	var saveErr error
	if s.opts.DataDir != "" {
		saveErr = s.save()
		if errors.Is(saveErr, fs.ErrNotExist) {
			Logger.Warningf("data dir %s is gone, snapshot not written", s.opts.DataDir)
			saveErr = nil
		} else if saveErr == nil {
			// the snapshot holds every logged write now
			if err := s.wlog.reset(); err != nil {
				Logger.Warningf("failed to reset write log: %v", err)
			}
		}
		if err := s.wlog.close(); err != nil {
			Logger.Warningf("failed to close write log: %v", err)
		}
	}

	if err := s.db.Close(); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to close db: %v", err))
	}
	if saveErr != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to save snapshot: %v", saveErr))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// check must be called with closeMu held
func (s *storeImpl) check(feature db.Feature, op string) error {
	if s.closed {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	if !s.db.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
	}
	return nil
}

// logWrite appends a write to the write log (if any). Must be called with closeMu held.
func (s *storeImpl) logWrite(op byte, key string, value []byte, ts int64) error {
	if s.wlog == nil {
		return nil
	}
	if err := s.wlog.append(op, key, value, ts); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to write log: %v", err))
	}
	return nil
}

// openLog opens the write log and replays the writes not yet in the snapshot
func (s *storeImpl) openLog() error {
	wlog, err := openWriteLog(filepath.Join(s.opts.DataDir, LogFile), s.opts.SyncWrites)
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to open write log: %v", err))
	}

	applied, err := wlog.replay(s.db)
	if err != nil {
		wlog.close()
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to replay write log: %v", err))
	}
	if applied > 0 {
		Logger.Infof("replayed %d writes from %s", applied, LogFile)
	}

	s.wlog = wlog
	return nil
}

func (s *storeImpl) snapshotPath() string {
	return filepath.Join(s.opts.DataDir, SnapshotFile)
}

// load restores the snapshot from the data dir. A missing snapshot is not an error.
func (s *storeImpl) load() error {
	if !s.db.SupportsFeature(db.FeatureLoad) {
		return store.NewError(store.RetCUnsupportedOperation, "Load operation is not supported")
	}

	f, err := os.Open(s.snapshotPath())
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Infof("no snapshot found in %s, starting empty", s.opts.DataDir)
		return nil
	}
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to open snapshot: %v", err))
	}
	defer f.Close()

	if err := s.db.Load(f); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to load snapshot: %v", err))
	}
	Logger.Infof("loaded snapshot from %s (write index %d)", s.snapshotPath(), s.db.WriteIdx())
	return nil
}

// save writes the snapshot to a temp file and renames it into place
func (s *storeImpl) save() error {
	if !s.db.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("save operation is not supported")
	}

	tmp, err := os.CreateTemp(s.opts.DataDir, SnapshotFile+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.db.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.snapshotPath()); err != nil {
		return err
	}

	Logger.Infof("saved snapshot to %s", s.snapshotPath())
	return nil
}
