// Package common provides the data structures shared by the RPC client and
// server of qKV.
//
// The package focuses on:
//   - Message protocol definition for the peer to peer replica operations
//   - Conversion between messages and replica responses
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the dragonboat logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Which fields are
//     used depends on the MessageType. A replica Get response carries the value,
//     the Ok flag and the Updated timestamp marker (0 = never written).
//
//   - ServerConfig: Configuration of a node (replica id, ordered cluster members,
//     data directory, peer timeout, API endpoint and peer transport).
//
//   - ClientConfig: Configuration for client transports, controlling connection
//     parameters, timeouts and retry behavior.
//
//   - Logger: Custom log format "LEVEL | name | message" shared by all packages.
package common
