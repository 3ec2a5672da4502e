// Package quorum implements the ack/from quorum policy used by the coordinator
// to size a fan-out and to decide whether an operation succeeded.
//
// A quorum is written as "ack/from": from is the number of cluster nodes that are
// contacted for an operation, ack is the minimum number of successful per-node
// outcomes required. A valid quorum always satisfies 1 <= ack <= from.
//
// Usage Example:
//
//	q, err := quorum.Parse("2/3")
//	if err != nil {
//	  // reject the request (bad request)
//	}
//
//	// or fall back to the majority default for the cluster size
//	q = quorum.DefaultFor(5) // 3/5
//
// All functions in this package are pure and safe for concurrent use.
package quorum
