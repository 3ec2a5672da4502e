package topology

import (
	"fmt"
	"strings"
)

// Node is a single member of the cluster
type Node struct {
	// ID is the unique name of the node (e.g. "node-1")
	ID string
	// Address is the endpoint of the node's peer RPC transport
	Address string
}

// String returns the node in the ID=Address format used on the command line
func (n Node) String() string {
	return n.ID + "=" + n.Address
}

// Topology is an immutable, ordered set of cluster nodes
type Topology struct {
	nodes  []Node
	selfID string
}

// New creates a topology from an ordered list of nodes.
// The list must be non-empty, IDs and addresses must be unique and selfID
// must be one of the members.
func New(nodes []Node, selfID string) (*Topology, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("topology must contain at least one node")
	}

	ids := make(map[string]struct{}, len(nodes))
	addrs := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if node.ID == "" || node.Address == "" {
			return nil, fmt.Errorf("invalid node %q: id and address are required", node.String())
		}
		if _, ok := ids[node.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		if _, ok := addrs[node.Address]; ok {
			return nil, fmt.Errorf("duplicate node address %q", node.Address)
		}
		ids[node.ID] = struct{}{}
		addrs[node.Address] = struct{}{}
	}

	if _, ok := ids[selfID]; !ok {
		return nil, fmt.Errorf("self id %q is not a member of the topology", selfID)
	}

	// copy so that the caller can not modify the topology afterwards
	ordered := make([]Node, len(nodes))
	copy(ordered, nodes)

	return &Topology{
		nodes:  ordered,
		selfID: selfID,
	}, nil
}

// Parse parses a comma-separated member list in the format
// "id=address,id=address,..." and keeps the declared order.
func Parse(members string, selfID string) (*Topology, error) {
	var nodes []Node
	for _, member := range strings.Split(members, ",") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		parts := strings.SplitN(member, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		nodes = append(nodes, Node{
			ID:      strings.TrimSpace(parts[0]),
			Address: strings.TrimSpace(parts[1]),
		})
	}
	return New(nodes, selfID)
}

// Size returns the number of nodes in the topology
func (t *Topology) Size() int {
	return len(t.nodes)
}

// Nodes returns a copy of all nodes in topology order
func (t *Topology) Nodes() []Node {
	nodes := make([]Node, len(t.nodes))
	copy(nodes, t.nodes)
	return nodes
}

// Self returns the local node
func (t *Topology) Self() Node {
	for _, node := range t.nodes {
		if node.ID == t.selfID {
			return node
		}
	}
	// unreachable, New guarantees that self is a member
	return Node{ID: t.selfID}
}

// IsSelf reports whether id is the local node
func (t *Topology) IsSelf(id string) bool {
	return id == t.selfID
}

// Select returns the first from nodes in topology order.
// The result does not depend on the key: every operation with the same from
// contacts the same nodes. from is clamped to [0, Size()].
func (t *Topology) Select(from int) []Node {
	if from < 0 {
		from = 0
	}
	if from > len(t.nodes) {
		from = len(t.nodes)
	}
	selected := make([]Node, from)
	copy(selected, t.nodes[:from])
	return selected
}

// String returns the topology in the command line format
func (t *Topology) String() string {
	parts := make([]string, len(t.nodes))
	for i, node := range t.nodes {
		parts[i] = node.String()
	}
	return strings.Join(parts, ",")
}
