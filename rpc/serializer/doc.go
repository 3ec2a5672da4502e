// Package serializer provides message serialization for the peer protocol of qKV.
// It defines a common interface and multiple implementations for serializing and
// deserializing the replica messages exchanged between nodes.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Selecting an implementation by name (ByName) from the command line
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized for speed
//     and space efficiency. A flag byte marks the present fields, only those are
//     encoded. The Updated timestamp marker is a fixed 8 byte field.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Every payload
//     carries the type description, so messages are considerably larger.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Binary is the default and recommended for clusters. JSON is useful when peer
// traffic is inspected by hand (e.g. with the http transport and curl).
//
// Thread Safety:
//
//	All serializer implementations are safe for concurrent use.
//
// Usage:
//
//	Serializers are created once per node and shared by all peer connections:
//
//	  serializer, err := serializer.ByName("binary")
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
