// Package transport defines the interfaces for the peer to peer communication
// of qKV nodes. It provides a common contract that all transport implementations
// must fulfill, so the RPC client and server are independent of the protocol.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets, gRPC)
//   - Carrying the deadline of a request from the coordinator to the wire
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Every subpackage offers NewXxxServerTransport and NewXxxClientTransport factory
// functions. ByName (subpackage registry) selects them from the command line.
package transport
