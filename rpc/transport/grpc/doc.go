// Package grpc implements the peer transport of qKV over gRPC.
//
// The service qkv.rpc.Transport has a single unary method Send whose request and
// response are google.protobuf.BytesValue messages holding the serialized qKV
// message. The service descriptor is written by hand, no protoc step is needed.
//
// The server also registers the standard gRPC health service
// (grpc.health.v1.Health) and reports SERVING for qkv.rpc.Transport until
// Shutdown is called.
//
// Clients are created with grpc.NewClient and connect lazily, so peers that are
// not started yet do not fail Connect. Requests use the context deadline, or the
// Timeout of the client config if the context has none.
package grpc
