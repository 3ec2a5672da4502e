package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/qKV/lib/quorum"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/lib/topology"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("coordinator")

// ErrBadRequest is returned for requests without a key
var ErrBadRequest = errors.New("bad request")

// DefaultTimeout bounds a single node call if no timeout is configured
const DefaultTimeout = 2 * time.Second

// Options configures the coordinator
type Options struct {
	// Timeout bounds every single node call. A call that runs into the
	// timeout counts as error. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Coordinator turns one client operation into a fan-out to the first from
// nodes of the topology and renders the quorum decision.
//
// Thread-safety: A Coordinator holds no mutable state and is safe for concurrent use.
type Coordinator struct {
	topo    *topology.Topology
	targets map[string]Target
	timeout time.Duration
}

// New creates a coordinator. targets must contain a Target for every node of
// the topology, keyed by node ID. The map is copied.
func New(topo *topology.Topology, targets map[string]Target, opts *Options) (*Coordinator, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology is required")
	}

	owned := make(map[string]Target, len(targets))
	for _, node := range topo.Nodes() {
		target, ok := targets[node.ID]
		if !ok || target == nil {
			return nil, fmt.Errorf("no target for node %s", node.ID)
		}
		owned[node.ID] = target
	}

	timeout := DefaultTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	return &Coordinator{
		topo:    topo,
		targets: owned,
		timeout: timeout,
	}, nil
}

// Topology returns the topology the coordinator dispatches to
func (c *Coordinator) Topology() *topology.Topology {
	return c.topo
}

// DefaultQuorum is the quorum used for requests without replicas parameter
func (c *Coordinator) DefaultQuorum() quorum.Quorum {
	return quorum.DefaultFor(c.topo.Size())
}

// Resolve turns the raw quorum parameter of a request into a quorum.
// An empty string yields the default quorum for the topology size.
func (c *Coordinator) Resolve(raw string) (quorum.Quorum, error) {
	if raw == "" {
		return c.DefaultQuorum(), nil
	}
	q, err := quorum.Parse(raw)
	if err != nil {
		return quorum.Quorum{}, err
	}
	if err := q.Validate(c.topo.Size()); err != nil {
		return quorum.Quorum{}, err
	}
	return q, nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Get reads key from the first q.From nodes.
//
// The decision is evaluated in this order:
//  1. at least one live value and no tombstone -> OutcomeOK with the value of
//     the first successful node in topology order
//  2. fewer than q.Ack meaningful answers -> OutcomeQuorumNotReached
//  3. otherwise -> OutcomeNotFound
func (c *Coordinator) Get(ctx context.Context, key string, q quorum.Quorum) (Result, error) {
	start := time.Now()
	if err := c.check(key, q); err != nil {
		return Result{}, err
	}

	answers := c.fanOut(ctx, q, func(ctx context.Context, t Target) (replica.Response, error) {
		return t.Get(ctx, key)
	})

	result := Result{Quorum: q, Timestamps: make(map[string]int64)}
	var value []byte
	found := false
	for _, a := range answers {
		if a.err != nil {
			result.Tally.Error++
			continue
		}
		switch {
		case a.resp.Status == replica.StatusFound:
			result.Tally.Success++
			result.Timestamps[a.nodeID] = a.resp.Timestamp
			if !found {
				value, found = a.resp.Value, true
			}
		case a.resp.IsTombstone():
			result.Tally.Deleted++
			result.Timestamps[a.nodeID] = a.resp.Timestamp
		case a.resp.Status == replica.StatusNotFound:
			result.Tally.NotFound++
		default:
			c.logNodeStatus(a, "get", key)
			result.Tally.Error++
		}
	}

	switch {
	case result.Tally.Success > 0 && result.Tally.Deleted == 0:
		result.Outcome = OutcomeOK
		result.Value = value
	case result.Tally.Responded() < q.Ack:
		result.Outcome = OutcomeQuorumNotReached
	default:
		result.Outcome = OutcomeNotFound
	}

	c.finish("get", key, result, start)
	return result, nil
}

// Put writes value to the first q.From nodes. Partial writes are not rolled back.
func (c *Coordinator) Put(ctx context.Context, key string, value []byte, q quorum.Quorum) (Result, error) {
	start := time.Now()
	if err := c.check(key, q); err != nil {
		return Result{}, err
	}

	answers := c.fanOut(ctx, q, func(ctx context.Context, t Target) (replica.Response, error) {
		return t.Put(ctx, key, value)
	})

	result := c.decideWrite(answers, q, replica.StatusCreated, OutcomeCreated, "put", key)
	c.finish("put", key, result, start)
	return result, nil
}

// Delete writes a tombstone to the first q.From nodes. Partial writes are not rolled back.
func (c *Coordinator) Delete(ctx context.Context, key string, q quorum.Quorum) (Result, error) {
	start := time.Now()
	if err := c.check(key, q); err != nil {
		return Result{}, err
	}

	answers := c.fanOut(ctx, q, func(ctx context.Context, t Target) (replica.Response, error) {
		return t.Delete(ctx, key)
	})

	result := c.decideWrite(answers, q, replica.StatusAccepted, OutcomeAccepted, "delete", key)
	c.finish("delete", key, result, start)
	return result, nil
}

// decideWrite renders want if at least q.Ack nodes answered with ok
func (c *Coordinator) decideWrite(answers []answer, q quorum.Quorum, ok replica.Status, want Outcome, op, key string) Result {
	result := Result{Quorum: q}
	for _, a := range answers {
		if a.err == nil && a.resp.Status == ok {
			result.Tally.Success++
			continue
		}
		if a.err == nil {
			c.logNodeStatus(a, op, key)
		}
		result.Tally.Error++
	}

	if result.Tally.Success >= q.Ack {
		result.Outcome = want
	} else {
		result.Outcome = OutcomeQuorumNotReached
	}
	return result
}

// --------------------------------------------------------------------------
// Fan-out
// --------------------------------------------------------------------------

// answer is the outcome of one node call
type answer struct {
	index  int
	nodeID string
	resp   replica.Response
	err    error
}

// fanOut calls every selected node concurrently and waits for all of them.
// Answers are returned in topology order. Cancelling ctx does not abort the
// node calls, each one is bounded by the coordinator timeout only.
func (c *Coordinator) fanOut(ctx context.Context, q quorum.Quorum, call func(context.Context, Target) (replica.Response, error)) []answer {
	nodes := c.topo.Select(q.From)
	results := make(chan answer, len(nodes))
	detached := context.WithoutCancel(ctx)

	for i, node := range nodes {
		go func(i int, node topology.Node) {
			results <- c.callNode(detached, i, node, call)
		}(i, node)
	}

	answers := make([]answer, len(nodes))
	for range nodes {
		a := <-results
		answers[a.index] = a
	}
	return answers
}

// callNode runs call against a single node and enforces the timeout even if
// the target ignores its context.
func (c *Coordinator) callNode(ctx context.Context, index int, node topology.Node, call func(context.Context, Target) (replica.Response, error)) answer {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan answer, 1)
	go func() {
		resp, err := call(callCtx, c.targets[node.ID])
		done <- answer{index: index, nodeID: node.ID, resp: resp, err: err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-callCtx.Done():
		a = answer{index: index, nodeID: node.ID, err: callCtx.Err()}
	}

	if a.err != nil {
		Logger.Warningf("node %s failed: %v", node.ID, a.err)
		observeNodeError(node.ID)
	}
	return a
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Coordinator) check(key string, q quorum.Quorum) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrBadRequest)
	}
	return q.Validate(c.topo.Size())
}

func (c *Coordinator) logNodeStatus(a answer, op, key string) {
	Logger.Warningf("node %s answered %s %q with %s", a.nodeID, op, key, a.resp.Status)
}

func (c *Coordinator) finish(op, key string, result Result, start time.Time) {
	Logger.Debugf("%s %q (%s): %s -> %s", op, key, result.Quorum, result.Tally, result.Outcome)
	observe(op, result.Outcome, result.Tally, start)
}
