// Package server runs a qKV node. A node owns the local store, serves the
// replica endpoint to its peers over the peer transport and answers clients
// on the HTTP API through the coordinator.
//
// Key Components:
//
//   - IRPCServerAdapter: Translates decoded peer messages into calls on a
//     replica.Endpoint. NewReplicaServerAdapter handles the replica get, put
//     and delete messages and answers pings.
//
//   - RPCServer: Wires store, endpoint, topology, peer targets, coordinator
//     and HTTP API together and owns their lifecycle.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  ReplicaID: "node-1",
//	  ClusterMembers: []common.ClusterMember{
//	    {ID: "node-1", Address: "localhost:63001"},
//	    {ID: "node-2", Address: "localhost:63002"},
//	    {ID: "node-3", Address: "localhost:63003"},
//	  },
//	  DataDir:   "data/node-1",
//	  Timeout:   2 * time.Second,
//	  Endpoint:  "0.0.0.0:8080",
//	  Transport: common.ServerTransportConfig{Endpoint: "localhost:63001"},
//	  LogLevel:  "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  tcp.NewTCPClientTransport,
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// All nodes of a cluster must be started with the same transport, serializer
// and cluster member list. Nodes may start in any order, peers that are not
// reachable yet are dialed again on the next request.
//
// Thread Safety:
//
//	Requests on the API and the peer transport are handled concurrently.
//	Serve must be called only once; Shutdown may be called any number of times.
package server
