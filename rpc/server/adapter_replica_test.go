package server

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/lib/store/lstore"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEndpoint(t *testing.T) *replica.Endpoint {
	t.Helper()
	s, err := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return replica.NewEndpoint(s)
}

func TestReplicaAdapter(t *testing.T) {
	adapter := NewReplicaServerAdapter()
	endpoint := newEndpoint(t)

	resp := adapter.Handle(common.NewReplicaGetRequest("k"), endpoint)
	assert.Equal(t, common.MsgTReplicaGet, resp.MsgType)
	assert.False(t, resp.Ok)
	assert.Zero(t, resp.Updated, "never written keys carry no marker")

	resp = adapter.Handle(common.NewReplicaPutRequest("k", []byte("v")), endpoint)
	assert.Equal(t, common.MsgTReplicaPut, resp.MsgType)
	assert.Empty(t, resp.Err)

	resp = adapter.Handle(common.NewReplicaGetRequest("k"), endpoint)
	assert.True(t, resp.Ok)
	assert.Equal(t, []byte("v"), resp.Value)
	assert.NotZero(t, resp.Updated)

	resp = adapter.Handle(common.NewReplicaDeleteRequest("k"), endpoint)
	assert.Equal(t, common.MsgTReplicaDelete, resp.MsgType)
	assert.Empty(t, resp.Err)

	resp = adapter.Handle(common.NewReplicaGetRequest("k"), endpoint)
	assert.False(t, resp.Ok)
	assert.NotZero(t, resp.Updated, "tombstones carry a marker")
}

func TestReplicaAdapterErrors(t *testing.T) {
	adapter := NewReplicaServerAdapter()
	endpoint := newEndpoint(t)

	resp := adapter.Handle(common.NewReplicaGetRequest(""), endpoint)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(&common.Message{MsgType: common.MsgTUnknown}, endpoint)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(common.NewReplicaGetRequest("k"), nil)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(common.NewPingRequest(), endpoint)
	assert.Equal(t, common.MsgTSuccess, resp.MsgType)
}

func TestReplicaAdapterInfo(t *testing.T) {
	adapter := NewReplicaServerAdapter()
	endpoint := newEndpoint(t)

	resp := adapter.Handle(common.NewInfoRequest(), endpoint)
	require.Equal(t, common.MsgTInfo, resp.MsgType)
	require.Empty(t, resp.Err)

	var info db.DatabaseInfo
	require.NoError(t, json.Unmarshal(resp.Meta, &info))
	assert.Equal(t, db.ImplMaple, info.DbType)
	assert.NotEmpty(t, info.SupportedFeatures)
}
