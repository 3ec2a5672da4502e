// Package api implements the client facing HTTP API of a qKV node.
//
// Routes:
//
//	GET    /v0/status                          -> 200 "OK"
//	GET    /v0/entity?id=<key>[&replicas=a/f]   -> 200 + value | 404 | 504
//	PUT    /v0/entity?id=<key>[&replicas=a/f]   -> 201 | 504
//	DELETE /v0/entity?id=<key>[&replicas=a/f]   -> 202 | 504
//	GET    /v0/replica?id=<key>                -> 200 + value | 404
//	PUT    /v0/replica?id=<key>                -> 201
//	DELETE /v0/replica?id=<key>                -> 202
//	GET    /metrics                            -> Prometheus exposition
//
// The entity routes run through the coordinator with the quorum of the replicas
// parameter, or the majority of the cluster if it is missing. 504 Gateway Timeout
// means the quorum was not reached, writes that reached some nodes are not rolled
// back.
//
// The replica routes only touch the local store. Found values and tombstones carry
// the X-Updated header (unix millis of the last write), a key that was never
// written is answered with 404 and no header. Storage failures yield 500.
//
// A missing id, an invalid quorum, unsupported methods and unknown routes are
// answered with 400.
//
// Client wraps the entity and status routes for programs and the CLI.
package api
