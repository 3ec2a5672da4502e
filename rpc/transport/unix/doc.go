// Package unix implements the peer transport of qKV over Unix domain sockets.
// It is meant for clusters whose nodes run on the same machine (tests, local
// development).
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting connection pooling, request correlation and error handling from
// the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket file first
//
// The default buffer size is 64 KB.
package unix
