package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/qKV/lib/coordinator"
	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/serializer"
	"github.com/ValentinKolb/qKV/rpc/transport"
)

// RPCTarget is a coordinator.Target that forwards the replica operations to a peer
type RPCTarget struct {
	rpcClientAdapter
	nodeID string
}

// NewRPCTarget creates the target of a remote node. The transport is connected
// once with config, its endpoints must all belong to the node.
func NewRPCTarget(
	nodeID string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCTarget, error) {
	if err := transport.Connect(config); err != nil {
		return nil, fmt.Errorf("failed to connect to node %s: %w", nodeID, err)
	}

	return &RPCTarget{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		nodeID: nodeID,
	}, nil
}

var _ coordinator.Target = (*RPCTarget)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see coordinator.Target)
// --------------------------------------------------------------------------

func (t *RPCTarget) Get(ctx context.Context, key string) (replica.Response, error) {
	return t.invoke(ctx, common.NewReplicaGetRequest(key))
}

func (t *RPCTarget) Put(ctx context.Context, key string, value []byte) (replica.Response, error) {
	return t.invoke(ctx, common.NewReplicaPutRequest(key, value))
}

func (t *RPCTarget) Delete(ctx context.Context, key string) (replica.Response, error) {
	return t.invoke(ctx, common.NewReplicaDeleteRequest(key))
}

// --------------------------------------------------------------------------
// Other Methods
// --------------------------------------------------------------------------

// Ping checks that the peer is reachable and answers
func (t *RPCTarget) Ping(ctx context.Context) error {
	resp, err := invokeRPCRequest(ctx, common.NewPingRequest(), t.transport, t.serializer)
	if err != nil {
		return fmt.Errorf("node %s: %w", t.nodeID, err)
	}
	if resp.MsgType != common.MsgTSuccess {
		return fmt.Errorf("node %s: %w: got %s for ping", t.nodeID, common.ErrUnexpectedResponse, resp.MsgType)
	}
	return nil
}

// Info returns the store info of the peer. Metadata holds the decoded JSON of
// the engine specific metadata.
func (t *RPCTarget) Info(ctx context.Context) (db.DatabaseInfo, error) {
	resp, err := invokeRPCRequest(ctx, common.NewInfoRequest(), t.transport, t.serializer)
	if err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("node %s: %w", t.nodeID, err)
	}
	if resp.MsgType != common.MsgTInfo {
		return db.DatabaseInfo{}, fmt.Errorf("node %s: %w: got %s for info", t.nodeID, common.ErrUnexpectedResponse, resp.MsgType)
	}
	if resp.Err != "" {
		return db.DatabaseInfo{}, fmt.Errorf("node %s: %s", t.nodeID, resp.Err)
	}

	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("node %s: invalid info: %w", t.nodeID, err)
	}
	return info, nil
}

// NodeID returns the ID of the remote node
func (t *RPCTarget) NodeID() string {
	return t.nodeID
}

// Close closes the transport
func (t *RPCTarget) Close() error {
	return t.transport.Close()
}

func (t *RPCTarget) invoke(ctx context.Context, req *common.Message) (replica.Response, error) {
	resp, err := invokeRPCRequest(ctx, req, t.transport, t.serializer)
	if err != nil {
		return replica.Response{}, fmt.Errorf("node %s: %w", t.nodeID, err)
	}

	r, err := common.ToReplicaResponse(req.MsgType, resp)
	if err != nil {
		return replica.Response{}, fmt.Errorf("node %s: %w", t.nodeID, err)
	}
	if r.Status == replica.StatusInternalError {
		Logger.Debugf("Node %s reported an error for %s %q: %s", t.nodeID, req.MsgType, req.Key, resp.Err)
	}
	return r, nil
}
