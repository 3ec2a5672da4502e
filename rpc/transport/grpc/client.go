package grpc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// NewGRPCClientTransport creates a new gRPC client transport
func NewGRPCClientTransport() transport.IRPCClientTransport {
	return &grpcClientTransport{}
}

type grpcClientTransport struct {
	config  common.ClientConfig
	conns   []*grpc.ClientConn
	counter atomic.Uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

// Connect creates one client connection per endpoint. gRPC dials lazily, so
// this does not fail for endpoints that are down.
func (t *grpcClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}
	_ = t.Close()

	conns := make([]*grpc.ClientConn, 0, len(config.Transport.Endpoints))
	for _, endpoint := range config.Transport.Endpoints {
		conn, err := grpc.NewClient(endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return fmt.Errorf("failed to create client for %s: %w", endpoint, err)
		}
		conns = append(conns, conn)
	}

	t.config = config
	t.conns = conns
	return nil
}

func (t *grpcClientTransport) Send(ctx context.Context, req []byte) ([]byte, error) {
	if len(t.conns) == 0 {
		return nil, transport.ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok && t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	attempts := max(1, t.config.Transport.RetryCount)
	var lastErr error
	for i := 0; i < attempts; i++ {
		conn := t.conns[t.counter.Add(1)%uint32(len(t.conns))]

		out := new(wrapperspb.BytesValue)
		err := conn.Invoke(ctx, sendMethod, wrapperspb.Bytes(req), out)
		if err == nil {
			return out.GetValue(), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, attempts, conn.Target(), err)
	}
	return nil, lastErr
}

func (t *grpcClientTransport) Close() error {
	var firstErr error
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.conns = nil
	return firstErr
}
