// Package topology models the static cluster a qKV node belongs to.
//
// A topology is an ordered list of nodes (ID and RPC address) together with
// the ID of the local node. It is fixed at process start and never changes
// afterwards. The declared order is the total order used for replica selection:
// an operation with a quorum of ack/from is always sent to the first from nodes
// of the topology, independent of the key. There is no hash based partitioning.
//
// Usage Example:
//
//	topo, err := topology.Parse("node-1=localhost:9001,node-2=localhost:9002,node-3=localhost:9003", "node-2")
//	if err != nil {
//	  panic(err)
//	}
//
//	for _, node := range topo.Select(2) {
//	  fmt.Println(node.ID, topo.IsSelf(node.ID)) // node-1 false, node-2 true
//	}
//
// Thread Safety:
//
//	A Topology is immutable after construction and safe for concurrent use.
package topology
