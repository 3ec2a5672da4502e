package replica

import (
	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("replica")

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Status is the outcome of a single replica operation
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusCreated
	StatusAccepted
	StatusBadRequest
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "Found"
	case StatusNotFound:
		return "NotFound"
	case StatusCreated:
		return "Created"
	case StatusAccepted:
		return "Accepted"
	case StatusBadRequest:
		return "BadRequest"
	case StatusInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Response is the result of a replica operation.
// Timestamp is the unix millis of the latest write, 0 means absent.
type Response struct {
	Status    Status
	Value     []byte
	Timestamp int64
}

// IsTombstone reports whether the response describes a deleted key
func (r Response) IsTombstone() bool {
	return r.Status == StatusNotFound && r.Timestamp != 0
}

// --------------------------------------------------------------------------
// Endpoint
// --------------------------------------------------------------------------

// Endpoint serves replica operations from a local store
type Endpoint struct {
	store store.IStore
}

// NewEndpoint creates a replica endpoint on top of s
func NewEndpoint(s store.IStore) *Endpoint {
	return &Endpoint{store: s}
}

// Info returns the metadata of the local store
func (e *Endpoint) Info() (db.DatabaseInfo, error) {
	return e.store.GetDBInfo()
}

// Get reads the local record for key
func (e *Endpoint) Get(key string) Response {
	if key == "" {
		return Response{Status: StatusBadRequest}
	}

	value, loaded, err := e.store.Get(key)
	if err != nil {
		Logger.Errorf("get %q failed: %v", key, err)
		return Response{Status: StatusInternalError}
	}

	ts, written, err := e.store.LastUpdateTimeMillis(key)
	if err != nil {
		Logger.Errorf("reading timestamp of %q failed: %v", key, err)
		return Response{Status: StatusInternalError}
	}

	switch {
	case loaded:
		return Response{Status: StatusFound, Value: value, Timestamp: ts}
	case written:
		return Response{Status: StatusNotFound, Timestamp: ts}
	default:
		return Response{Status: StatusNotFound}
	}
}

// Put stores value under key
func (e *Endpoint) Put(key string, value []byte) Response {
	if key == "" {
		return Response{Status: StatusBadRequest}
	}
	if err := e.store.Upsert(key, value); err != nil {
		Logger.Errorf("put %q failed: %v", key, err)
		return Response{Status: StatusInternalError}
	}
	return Response{Status: StatusCreated}
}

// Delete writes a tombstone for key
func (e *Endpoint) Delete(key string) Response {
	if key == "" {
		return Response{Status: StatusBadRequest}
	}
	if err := e.store.Remove(key); err != nil {
		Logger.Errorf("delete %q failed: %v", key, err)
		return Response{Status: StatusInternalError}
	}
	return Response{Status: StatusAccepted}
}
