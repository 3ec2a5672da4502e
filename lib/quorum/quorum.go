package quorum

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidQuorum is returned for every quorum string or quorum value that
// violates 1 <= ack <= from (<= cluster size).
var ErrInvalidQuorum = errors.New("invalid quorum")

// separator splits ack and from in the textual representation
const separator = "/"

// Quorum is an (ack, from) pair.
type Quorum struct {
	// Ack is the minimum number of successful per-node operations
	Ack int
	// From is the number of nodes the operation is sent to
	From int
}

// Parse parses a quorum string in the format "ack/from".
// Both halves must be integers with 1 <= ack <= from, otherwise an error
// wrapping ErrInvalidQuorum is returned.
func Parse(raw string) (Quorum, error) {
	parts := strings.Split(raw, separator)
	if len(parts) != 2 {
		return Quorum{}, fmt.Errorf("%w: %q (expected ack/from)", ErrInvalidQuorum, raw)
	}

	ack, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Quorum{}, fmt.Errorf("%w: ack %q is not a number", ErrInvalidQuorum, parts[0])
	}

	from, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Quorum{}, fmt.Errorf("%w: from %q is not a number", ErrInvalidQuorum, parts[1])
	}

	q := Quorum{Ack: ack, From: from}
	if err := q.check(); err != nil {
		return Quorum{}, err
	}
	return q, nil
}

// DefaultFor returns the majority quorum for a cluster of nodeCount nodes:
// ack = nodeCount/2 + 1, from = nodeCount.
func DefaultFor(nodeCount int) Quorum {
	return Quorum{
		Ack:  nodeCount/2 + 1,
		From: nodeCount,
	}
}

// Validate checks the quorum against a cluster of nodeCount nodes.
// It requires 1 <= ack <= from <= nodeCount.
func (q Quorum) Validate(nodeCount int) error {
	if err := q.check(); err != nil {
		return err
	}
	if q.From > nodeCount {
		return fmt.Errorf("%w: from=%d exceeds cluster size %d", ErrInvalidQuorum, q.From, nodeCount)
	}
	return nil
}

// String returns the "ack/from" representation of the quorum.
func (q Quorum) String() string {
	return strconv.Itoa(q.Ack) + separator + strconv.Itoa(q.From)
}

// check enforces 1 <= ack <= from
func (q Quorum) check() error {
	if q.Ack < 1 {
		return fmt.Errorf("%w: ack=%d must be at least 1", ErrInvalidQuorum, q.Ack)
	}
	if q.Ack > q.From {
		return fmt.Errorf("%w: ack=%d exceeds from=%d", ErrInvalidQuorum, q.Ack, q.From)
	}
	return nil
}
