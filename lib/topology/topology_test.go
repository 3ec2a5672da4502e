package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const members = "node-1=localhost:9001,node-2=localhost:9002,node-3=localhost:9003"

func TestParseKeepsOrder(t *testing.T) {
	topo, err := Parse(members, "node-2")
	require.NoError(t, err)

	assert.Equal(t, 3, topo.Size())
	assert.Equal(t, []Node{
		{ID: "node-1", Address: "localhost:9001"},
		{ID: "node-2", Address: "localhost:9002"},
		{ID: "node-3", Address: "localhost:9003"},
	}, topo.Nodes())
	assert.Equal(t, Node{ID: "node-2", Address: "localhost:9002"}, topo.Self())
	assert.True(t, topo.IsSelf("node-2"))
	assert.False(t, topo.IsSelf("node-1"))
	assert.Equal(t, members, topo.String())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		members string
		self    string
	}{
		"empty":              {members: "", self: "node-1"},
		"missing address":    {members: "node-1", self: "node-1"},
		"duplicate id":       {members: "node-1=a:1,node-1=a:2", self: "node-1"},
		"duplicate address":  {members: "node-1=a:1,node-2=a:1", self: "node-1"},
		"self not a member":  {members: "node-1=a:1,node-2=a:2", self: "node-3"},
		"empty id":           {members: "=a:1", self: ""},
		"empty address part": {members: "node-1=", self: "node-1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.members, tc.self)
			assert.Error(t, err)
		})
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	topo, err := Parse(members, "node-3")
	require.NoError(t, err)

	first := topo.Select(2)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, topo.Select(2))
	}
	assert.Equal(t, []Node{
		{ID: "node-1", Address: "localhost:9001"},
		{ID: "node-2", Address: "localhost:9002"},
	}, first)
}

func TestSelectBounds(t *testing.T) {
	topo, err := Parse(members, "node-1")
	require.NoError(t, err)

	assert.Len(t, topo.Select(0), 0)
	assert.Len(t, topo.Select(-1), 0)
	assert.Len(t, topo.Select(3), 3)
	assert.Len(t, topo.Select(10), 3)
}

func TestTopologyIsImmutable(t *testing.T) {
	nodes := []Node{{ID: "a", Address: "a:1"}, {ID: "b", Address: "b:1"}}
	topo, err := New(nodes, "a")
	require.NoError(t, err)

	nodes[0].ID = "changed"
	topo.Nodes()[1].ID = "changed"
	topo.Select(2)[0].Address = "changed"

	assert.Equal(t, []Node{{ID: "a", Address: "a:1"}, {ID: "b", Address: "b:1"}}, topo.Nodes())
}
