// Package base provides the socket transport shared by the tcp and unix
// transports. It implements framing, pooling and request correlation
// independent of the specific network protocol, protocol-specific parts are
// injected as connectors.
//
// Frame format: requestID (uint64) | length (uint32) | payload. All integers
// are big endian.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dialing, listening and socket options).
//
//   - clientTransport: Manages a pool of connections per endpoint with round-robin
//     selection. Responses are correlated by request ID, so many requests share one
//     connection. A broken connection fails its pending requests and is re-dialed by
//     the next request. With ClientTransportConfig.Lazy, endpoints that are down at
//     Connect are kept and dialed later.
//
//   - serverTransport: Accepts connections and runs up to WorkersPerConn handler
//     goroutines per connection. Shutdown closes the listener and waits for the
//     requests in flight.
//
// Timeouts:
//
//	The deadline of a request is the deadline of its context, or now + Timeout of the
//	client config if the context has none. Retries (RetryCount) use exponential
//	backoff and stop once the context is done.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized, reads
//	happen in one goroutine per connection.
package base
