// Package coordinator implements the quorum logic of a qKV node.
//
// The node that receives a client request becomes its coordinator. For a quorum
// ack/from it selects the first from nodes of the fixed topology, sends the
// operation to every one of them in parallel and waits for all answers. There is
// no early exit once ack answers arrived. Each answer is classified into a tally:
//
//	success   live value (GET) or accepted write (PUT, DELETE)
//	deleted   tombstone, the node knows the key was deleted (GET only)
//	notFound  the node never saw the key (GET only)
//	error     storage fault, transport fault, timeout or unexpected status
//
// Decisions:
//
//	GET     success > 0 and deleted == 0         -> OutcomeOK (first success in topology order)
//	        success + deleted + notFound < ack   -> OutcomeQuorumNotReached
//	        otherwise                            -> OutcomeNotFound
//	PUT     success >= ack -> OutcomeCreated,  otherwise OutcomeQuorumNotReached
//	DELETE  success >= ack -> OutcomeAccepted, otherwise OutcomeQuorumNotReached
//
// Writes that reached fewer than ack nodes are not rolled back.
//
// Targets:
//
// Every topology node is reached through a Target. NewLocalTarget serves the
// local node directly from its replica.Endpoint, the rpc/client package provides
// the remote variant. Targets are bound once at startup.
//
// Metrics:
//
// Request counts per operation and outcome, request durations and node failures
// are exported through github.com/VictoriaMetrics/metrics.
package coordinator
