// Package rpc provides the peer to peer communication layer of qKV. The
// coordinator of a node reaches the replica endpoint of every other node
// through it.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP, gRPC).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: A coordinator.Target that forwards replica operations to a peer.
//
//   - server: Serves the local replica endpoint to peers and runs a complete node.
package rpc
