// Package http implements the peer transport of qKV over HTTP. Every request is
// a POST to /rpc whose body is the serialized message, the response body is the
// serialized answer.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints are given as
//     host:port or as base URL, requests are spread round-robin over them and
//     retried up to RetryCount times while the context allows it.
//
//   - httpServerTransport: Implements IRPCServerTransport with a net/http server
//     and graceful Shutdown. With log level debug every request is logged.
//
// Since the format is plain HTTP, peer traffic can be inspected with standard
// tools, e.g. together with the json serializer:
//
//	curl -X POST --data '{"msg_type":"ping"}' http://localhost:9090/rpc
package http
