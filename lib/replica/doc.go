// Package replica implements the per-node endpoint that the quorum coordinator
// talks to. It executes single-node reads and writes against the local store
// and never applies quorum logic.
//
// Response statuses:
//
//	Get     live value          -> StatusFound, value, timestamp
//	        tombstone           -> StatusNotFound, timestamp marker
//	        never written       -> StatusNotFound, no marker (Timestamp == 0)
//	Put     success             -> StatusCreated
//	Delete  success             -> StatusAccepted
//	any     empty key           -> StatusBadRequest
//	any     storage failure     -> StatusInternalError
//
// The timestamp marker is what lets the coordinator tell "deleted" apart from
// "never written".
package replica
