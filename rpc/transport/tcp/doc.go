// Package tcp implements the TCP socket transport for the peer RPC of qKV. It
// provides concrete implementations of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse and request correlation. See the base package
// documentation for details on the framing and the timeout handling.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both sides apply the TCPConf and SocketConf options of their configuration
// (no delay, keep alive, linger and socket buffer sizes).
// The server buffer size is 512 KB.
package tcp
