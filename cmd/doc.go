// Package cmd implements the command-line interface of qKV. It provides
// a hierarchical command structure for running a node and for talking to
// a running cluster as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a qKV node (local store, peer transport, HTTP API)
//   - kv: Client commands for key-value operations (get, put, del, perf, ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See qkv -help for a list of all commands.
package cmd
