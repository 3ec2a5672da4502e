package serve

import (
	"testing"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClusterMembers(t *testing.T) {
	members, err := ParseClusterMembers("n2=localhost:63002, n1=localhost:63001,n3=/tmp/n3.sock")
	require.NoError(t, err)
	assert.Equal(t, []common.ClusterMember{
		{ID: "n2", Address: "localhost:63002"},
		{ID: "n1", Address: "localhost:63001"},
		{ID: "n3", Address: "/tmp/n3.sock"},
	}, members)

	for _, raw := range []string{"", "n1", "n1=", "=addr", "n1=a,n1=b"} {
		_, err := ParseClusterMembers(raw)
		assert.Error(t, err, raw)
	}
}
