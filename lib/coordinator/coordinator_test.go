package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/quorum"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/lib/store/lstore"
	"github.com/ValentinKolb/qKV/lib/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test targets
// --------------------------------------------------------------------------

var errUnreachable = errors.New("node unreachable")

// downTarget simulates a peer that can not be reached
type downTarget struct{}

func (downTarget) Get(context.Context, string) (replica.Response, error) {
	return replica.Response{}, errUnreachable
}
func (downTarget) Put(context.Context, string, []byte) (replica.Response, error) {
	return replica.Response{}, errUnreachable
}
func (downTarget) Delete(context.Context, string) (replica.Response, error) {
	return replica.Response{}, errUnreachable
}

// hangingTarget never answers and ignores its context
type hangingTarget struct{ release chan struct{} }

func (h hangingTarget) Get(context.Context, string) (replica.Response, error) {
	<-h.release
	return replica.Response{Status: replica.StatusFound}, nil
}
func (h hangingTarget) Put(context.Context, string, []byte) (replica.Response, error) {
	<-h.release
	return replica.Response{Status: replica.StatusCreated}, nil
}
func (h hangingTarget) Delete(context.Context, string) (replica.Response, error) {
	<-h.release
	return replica.Response{Status: replica.StatusAccepted}, nil
}

// recordingTarget counts the calls that reached it
type recordingTarget struct {
	Target
	mu    sync.Mutex
	calls int
}

func (r *recordingTarget) Get(ctx context.Context, key string) (replica.Response, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.Target.Get(ctx, key)
}

func (r *recordingTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// --------------------------------------------------------------------------
// Cluster helper
// --------------------------------------------------------------------------

type cluster struct {
	coord     *Coordinator
	endpoints map[string]*replica.Endpoint
	targets   map[string]Target
}

// newCluster builds an in-process cluster with n nodes. Nodes listed in down
// are replaced by unreachable targets.
func newCluster(t *testing.T, n int, down ...string) *cluster {
	t.Helper()

	var nodes []topology.Node
	for i := 1; i <= n; i++ {
		nodes = append(nodes, topology.Node{ID: fmt.Sprintf("node-%d", i), Address: fmt.Sprintf("localhost:%d", 9000+i)})
	}
	topo, err := topology.New(nodes, "node-1")
	require.NoError(t, err)

	c := &cluster{
		endpoints: make(map[string]*replica.Endpoint),
		targets:   make(map[string]Target),
	}
	for _, node := range nodes {
		s, err := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, nil)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })

		c.endpoints[node.ID] = replica.NewEndpoint(s)
		c.targets[node.ID] = NewLocalTarget(c.endpoints[node.ID])
	}
	for _, id := range down {
		c.targets[id] = downTarget{}
	}

	c.coord, err = New(topo, c.targets, &Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func mustParse(t *testing.T, raw string) quorum.Quorum {
	t.Helper()
	q, err := quorum.Parse(raw)
	require.NoError(t, err)
	return q
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestWriteThenRead(t *testing.T) {
	c := newCluster(t, 3)
	ctx := context.Background()
	q := mustParse(t, "2/3")

	res, err := c.coord.Put(ctx, "k", []byte("v"), q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, Tally{Success: 3}, res.Tally)

	res, err = c.coord.Get(ctx, "k", q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, []byte("v"), res.Value)
	assert.Len(t, res.Timestamps, 3, "every responding node reports a timestamp")
}

func TestDeleteThenRead(t *testing.T) {
	c := newCluster(t, 3)
	ctx := context.Background()
	q := mustParse(t, "2/3")

	_, err := c.coord.Put(ctx, "k", []byte("v"), q)
	require.NoError(t, err)

	res, err := c.coord.Delete(ctx, "k", q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)

	res, err = c.coord.Get(ctx, "k", q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, Tally{Deleted: 3}, res.Tally)

	// the peer-facing read distinguishes deleted from never written
	peer := c.endpoints["node-2"].Get("k")
	assert.Equal(t, replica.StatusNotFound, peer.Status)
	assert.NotZero(t, peer.Timestamp)

	unknown := c.endpoints["node-2"].Get("never-written")
	assert.Equal(t, replica.StatusNotFound, unknown.Status)
	assert.Zero(t, unknown.Timestamp)
}

func TestQuorumShortfall(t *testing.T) {
	c := newCluster(t, 3, "node-3")
	ctx := context.Background()
	q := mustParse(t, "3/3")

	res, err := c.coord.Put(ctx, "k", []byte("v"), q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuorumNotReached, res.Outcome)
	assert.Equal(t, Tally{Success: 2, Error: 1}, res.Tally)

	res, err = c.coord.Get(ctx, "fresh", q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuorumNotReached, res.Outcome)
	assert.Equal(t, Tally{NotFound: 2, Error: 1}, res.Tally)

	res, err = c.coord.Delete(ctx, "k", q)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuorumNotReached, res.Outcome)
}

func TestPartialWritesAreKept(t *testing.T) {
	c := newCluster(t, 3, "node-3")
	ctx := context.Background()

	res, err := c.coord.Put(ctx, "k", []byte("v"), mustParse(t, "3/3"))
	require.NoError(t, err)
	require.Equal(t, OutcomeQuorumNotReached, res.Outcome)

	// no rollback: the two healthy nodes hold the value
	assert.Equal(t, replica.StatusFound, c.endpoints["node-1"].Get("k").Status)
	assert.Equal(t, replica.StatusFound, c.endpoints["node-2"].Get("k").Status)

	// a live value without tombstones wins even below ack
	res, err = c.coord.Get(ctx, "k", mustParse(t, "3/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
}

func TestNeverWrittenKey(t *testing.T) {
	c := newCluster(t, 3)

	res, err := c.coord.Get(context.Background(), "unknown", mustParse(t, "2/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, Tally{NotFound: 3}, res.Tally)
	assert.Empty(t, res.Timestamps)
}

func TestRepeatedDeleteAdvancesTimestamp(t *testing.T) {
	c := newCluster(t, 3)
	ctx := context.Background()
	q := mustParse(t, "3/3")

	var last int64
	for i := 0; i < 5; i++ {
		res, err := c.coord.Delete(ctx, "k", q)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAccepted, res.Outcome)

		ts := c.endpoints["node-1"].Get("k").Timestamp
		assert.Greater(t, ts, last)
		last = ts
	}
}

func TestTombstoneBeatsLiveValue(t *testing.T) {
	c := newCluster(t, 3)
	ctx := context.Background()

	c.endpoints["node-1"].Put("k", []byte("stale"))
	c.endpoints["node-2"].Delete("k")

	res, err := c.coord.Get(ctx, "k", mustParse(t, "2/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, Tally{Success: 1, Deleted: 1, NotFound: 1}, res.Tally)
	assert.Len(t, res.Timestamps, 2)
}

func TestFirstSuccessInTopologyOrder(t *testing.T) {
	c := newCluster(t, 3)

	c.endpoints["node-3"].Put("k", []byte("third"))
	c.endpoints["node-2"].Put("k", []byte("second"))

	for i := 0; i < 20; i++ {
		res, err := c.coord.Get(context.Background(), "k", mustParse(t, "1/3"))
		require.NoError(t, err)
		require.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, []byte("second"), res.Value)
	}
}

func TestSubsetDeterminism(t *testing.T) {
	c := newCluster(t, 5)

	recorders := make(map[string]*recordingTarget)
	targets := make(map[string]Target)
	for id, target := range c.targets {
		recorders[id] = &recordingTarget{Target: target}
		targets[id] = recorders[id]
	}
	coord, err := New(c.coord.Topology(), targets, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := coord.Get(context.Background(), fmt.Sprintf("key-%d", i), mustParse(t, "1/3"))
		require.NoError(t, err)
	}

	assert.Equal(t, 50, recorders["node-1"].count())
	assert.Equal(t, 50, recorders["node-2"].count())
	assert.Equal(t, 50, recorders["node-3"].count())
	assert.Equal(t, 0, recorders["node-4"].count())
	assert.Equal(t, 0, recorders["node-5"].count())
}

func TestTimeoutCountsAsError(t *testing.T) {
	c := newCluster(t, 3)
	release := make(chan struct{})
	defer close(release)

	targets := make(map[string]Target)
	for id, target := range c.targets {
		targets[id] = target
	}
	targets["node-2"] = hangingTarget{release: release}

	coord, err := New(c.coord.Topology(), targets, &Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	res, err := coord.Put(context.Background(), "k", []byte("v"), mustParse(t, "2/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, Tally{Success: 2, Error: 1}, res.Tally)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCancelledClientStillWrites(t *testing.T) {
	c := newCluster(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.coord.Put(ctx, "k", []byte("v"), mustParse(t, "3/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	for id, e := range c.endpoints {
		assert.Equal(t, replica.StatusFound, e.Get("k").Status, id)
	}
}

func TestInternalErrorCountsAsError(t *testing.T) {
	c := newCluster(t, 3)

	// a closed store answers with StatusInternalError
	broken, err := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, nil)
	require.NoError(t, err)
	require.NoError(t, broken.Close())

	targets := make(map[string]Target)
	for id, target := range c.targets {
		targets[id] = target
	}
	targets["node-1"] = NewLocalTarget(replica.NewEndpoint(broken))

	coord, err := New(c.coord.Topology(), targets, nil)
	require.NoError(t, err)

	res, err := coord.Get(context.Background(), "k", mustParse(t, "3/3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuorumNotReached, res.Outcome)
	assert.Equal(t, Tally{NotFound: 2, Error: 1}, res.Tally)
}

func TestBadRequests(t *testing.T) {
	c := newCluster(t, 3)
	ctx := context.Background()
	q := mustParse(t, "2/3")

	_, err := c.coord.Get(ctx, "", q)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = c.coord.Put(ctx, "", []byte("v"), q)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = c.coord.Delete(ctx, "", q)
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = c.coord.Get(ctx, "k", quorum.Quorum{Ack: 2, From: 4})
	assert.ErrorIs(t, err, quorum.ErrInvalidQuorum)
}

func TestResolve(t *testing.T) {
	c := newCluster(t, 3)

	q, err := c.coord.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, quorum.Quorum{Ack: 2, From: 3}, q)

	q, err = c.coord.Resolve("1/2")
	require.NoError(t, err)
	assert.Equal(t, quorum.Quorum{Ack: 1, From: 2}, q)

	for _, raw := range []string{"5/3", "0/2", "x/y", "2/4", "3"} {
		_, err := c.coord.Resolve(raw)
		assert.ErrorIs(t, err, quorum.ErrInvalidQuorum, raw)
	}
}

func TestNewRequiresAllTargets(t *testing.T) {
	c := newCluster(t, 3)

	targets := map[string]Target{"node-1": c.targets["node-1"]}
	_, err := New(c.coord.Topology(), targets, nil)
	assert.Error(t, err)

	_, err = New(nil, c.targets, nil)
	assert.Error(t, err)
}
