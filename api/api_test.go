package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/coordinator"
	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/lib/store/lstore"
	"github.com/ValentinKolb/qKV/lib/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test cluster
// --------------------------------------------------------------------------

var errNodeDown = errors.New("node down")

// downTarget simulates an unreachable node
type downTarget struct{}

func (downTarget) Get(context.Context, string) (replica.Response, error) {
	return replica.Response{}, errNodeDown
}
func (downTarget) Put(context.Context, string, []byte) (replica.Response, error) {
	return replica.Response{}, errNodeDown
}
func (downTarget) Delete(context.Context, string) (replica.Response, error) {
	return replica.Response{}, errNodeDown
}

// testCluster is a cluster of n nodes in one process. Every node has its own
// API server, peers are reached through their replica endpoints directly.
type testCluster struct {
	servers   []*httptest.Server
	endpoints []*replica.Endpoint
}

func newTestCluster(t *testing.T, n int, down ...int) *testCluster {
	t.Helper()

	nodes := make([]topology.Node, n)
	for i := range nodes {
		nodes[i] = topology.Node{ID: fmt.Sprintf("n%d", i), Address: fmt.Sprintf("127.0.0.1:%d", 9100+i)}
	}

	c := &testCluster{}
	targets := make(map[string]coordinator.Target, n)
	for _, node := range nodes {
		s, err := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		endpoint := replica.NewEndpoint(s)
		c.endpoints = append(c.endpoints, endpoint)
		targets[node.ID] = coordinator.NewLocalTarget(endpoint)
	}
	for _, i := range down {
		targets[nodes[i].ID] = downTarget{}
	}

	for i, node := range nodes {
		topo, err := topology.New(nodes, node.ID)
		require.NoError(t, err)
		coord, err := coordinator.New(topo, targets, &coordinator.Options{Timeout: time.Second})
		require.NoError(t, err)

		server := httptest.NewServer(NewHandler(coord, c.endpoints[i]))
		t.Cleanup(server.Close)
		c.servers = append(c.servers, server)
	}
	return c
}

// do sends a request to node i and returns status, body and the X-Updated header
func (c *testCluster) do(t *testing.T, i int, method, path string, body []byte) (int, string, string) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.servers[i].URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data), resp.Header.Get(HeaderUpdated)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestStatus(t *testing.T) {
	c := newTestCluster(t, 1)

	status, body, _ := c.do(t, 0, http.MethodGet, PathStatus, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestEntityLifecycle(t *testing.T) {
	c := newTestCluster(t, 3)
	path := PathEntity + "?id=k1&replicas=2/3"

	status, _, _ := c.do(t, 0, http.MethodPut, path, []byte("v1"))
	assert.Equal(t, http.StatusCreated, status)

	// any node can coordinate the read
	for i := 0; i < 3; i++ {
		status, body, _ := c.do(t, i, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "v1", body)
	}

	status, _, _ = c.do(t, 1, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusAccepted, status)

	status, _, _ = c.do(t, 2, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEntityEmptyValue(t *testing.T) {
	c := newTestCluster(t, 1)
	path := PathEntity + "?id=empty"

	status, _, _ := c.do(t, 0, http.MethodPut, path, []byte{})
	assert.Equal(t, http.StatusCreated, status)

	status, body, _ := c.do(t, 0, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}

func TestEntityDefaultQuorum(t *testing.T) {
	// majority of 3 is 2/3, one node down is tolerated
	c := newTestCluster(t, 3, 2)

	status, _, _ := c.do(t, 0, http.MethodPut, PathEntity+"?id=k", []byte("v"))
	assert.Equal(t, http.StatusCreated, status)

	status, body, _ := c.do(t, 0, http.MethodGet, PathEntity+"?id=k", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v", body)
}

func TestEntityBadRequests(t *testing.T) {
	c := newTestCluster(t, 3)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"missing id", http.MethodGet, PathEntity},
		{"empty id", http.MethodGet, PathEntity + "?id="},
		{"ack zero", http.MethodGet, PathEntity + "?id=k&replicas=0/1"},
		{"ack above from", http.MethodPut, PathEntity + "?id=k&replicas=3/2"},
		{"from above cluster size", http.MethodGet, PathEntity + "?id=k&replicas=1/4"},
		{"not a number", http.MethodDelete, PathEntity + "?id=k&replicas=a/b"},
		{"missing separator", http.MethodGet, PathEntity + "?id=k&replicas=2"},
		{"unsupported method", http.MethodPost, PathEntity + "?id=k"},
		{"unknown route", http.MethodGet, "/v0/unknown"},
		{"replica without id", http.MethodGet, PathReplica},
		{"replica unsupported method", http.MethodPost, PathReplica + "?id=k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, _ := c.do(t, 0, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestQuorumNotReached(t *testing.T) {
	c := newTestCluster(t, 3, 1, 2)

	status, _, _ := c.do(t, 0, http.MethodPut, PathEntity+"?id=k&replicas=2/3", []byte("v"))
	assert.Equal(t, http.StatusGatewayTimeout, status)

	status, _, _ = c.do(t, 0, http.MethodDelete, PathEntity+"?id=k&replicas=2/3", nil)
	assert.Equal(t, http.StatusGatewayTimeout, status)

	status, _, _ = c.do(t, 0, http.MethodGet, PathEntity+"?id=fresh&replicas=2/3", nil)
	assert.Equal(t, http.StatusGatewayTimeout, status)

	// a smaller quorum still works
	status, _, _ = c.do(t, 0, http.MethodPut, PathEntity+"?id=k&replicas=1/3", []byte("v"))
	assert.Equal(t, http.StatusCreated, status)
}

func TestTombstoneOnOneReplicaWins(t *testing.T) {
	c := newTestCluster(t, 2)

	status, _, _ := c.do(t, 0, http.MethodPut, PathReplica+"?id=k", []byte("v"))
	require.Equal(t, http.StatusCreated, status)
	status, _, _ = c.do(t, 1, http.MethodDelete, PathReplica+"?id=k", nil)
	require.Equal(t, http.StatusAccepted, status)

	status, _, _ = c.do(t, 0, http.MethodGet, PathEntity+"?id=k&replicas=2/2", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// with from=1 only the live replica is asked
	status, body, _ := c.do(t, 0, http.MethodGet, PathEntity+"?id=k&replicas=1/1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v", body)
}

func TestReplicaRoute(t *testing.T) {
	c := newTestCluster(t, 1)
	path := PathReplica + "?id=k"

	status, _, updated := c.do(t, 0, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, updated, "never written keys have no timestamp")

	status, _, _ = c.do(t, 0, http.MethodPut, path, []byte("v"))
	assert.Equal(t, http.StatusCreated, status)

	status, body, written := c.do(t, 0, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v", body)
	assert.NotEmpty(t, written)

	status, _, _ = c.do(t, 0, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusAccepted, status)

	status, _, deleted := c.do(t, 0, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotEmpty(t, deleted, "tombstones carry a timestamp")
	assert.Greater(t, deleted, written)
}

func TestMetrics(t *testing.T) {
	c := newTestCluster(t, 1)

	status, _, _ := c.do(t, 0, http.MethodPut, PathEntity+"?id=m", []byte("v"))
	require.Equal(t, http.StatusCreated, status)

	status, body, _ := c.do(t, 0, http.MethodGet, PathMetrics, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, "qkv_coordinator_requests_total"), "metrics:\n%s", body)
}

func TestClient(t *testing.T) {
	c := newTestCluster(t, 3, 2)
	ctx := context.Background()

	client, err := NewClient(strings.TrimPrefix(c.servers[0].URL, "http://"), 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, client.Status(ctx))

	require.NoError(t, client.Put(ctx, "k", []byte("v"), ""))
	value, err := client.Get(ctx, "k", "2/3")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, client.Delete(ctx, "k", ""))
	_, err = client.Get(ctx, "k", "")
	assert.ErrorIs(t, err, ErrNotFound)

	err = client.Put(ctx, "k", []byte("v"), "3/3")
	assert.ErrorIs(t, err, ErrQuorumNotReached)

	_, err = client.Get(ctx, "k", "4/3")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = NewClient("http://", time.Second)
	assert.Error(t, err)
}
