package coordinator

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/quorum"
)

// Outcome is the client visible result of a coordinated operation
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeCreated
	OutcomeAccepted
	OutcomeNotFound
	OutcomeQuorumNotReached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeCreated:
		return "created"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeQuorumNotReached:
		return "quorum_not_reached"
	default:
		return "unknown"
	}
}

// Tally counts the per-node outcomes of one request
type Tally struct {
	Success  int
	NotFound int
	Deleted  int
	Error    int
}

// Responded is the number of nodes that gave a meaningful answer
func (t Tally) Responded() int {
	return t.Success + t.NotFound + t.Deleted
}

func (t Tally) String() string {
	return fmt.Sprintf("success=%d notFound=%d deleted=%d error=%d", t.Success, t.NotFound, t.Deleted, t.Error)
}

// Result is the decision of the coordinator for one request
type Result struct {
	Outcome Outcome
	// Value is set for OutcomeOK only
	Value  []byte
	Quorum quorum.Quorum
	Tally  Tally
	// Timestamps holds the last update time reported by each node (GET only).
	// They are collected but not used to pick the returned value.
	Timestamps map[string]int64
}
