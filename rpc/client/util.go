package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/serializer"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores everything an RPC client needs to reach one peer
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest serializes req, sends it and deserializes the answer.
// It only fails on transport and decoding errors, the caller checks the
// content of the response.
func invokeRPCRequest(ctx context.Context, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s request: %w", req.MsgType, err)
	}

	respBytes, err := transport.Send(ctx, reqBytes)
	if err != nil {
		return nil, err
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize %s response: %w", req.MsgType, err)
	}

	return resp, nil
}
