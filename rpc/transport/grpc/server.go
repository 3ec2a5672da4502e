package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var Logger = logger.GetLogger("transport/rpc")

// maxMessageSize bounds the size of a single request or response
const maxMessageSize = 256 << 20

// NewGRPCServerTransport creates a new gRPC server transport
func NewGRPCServerTransport() transport.IRPCServerTransport {
	return &grpcServerTransport{}
}

type grpcServerTransport struct {
	handler transport.ServerHandleFunc
	mu      sync.Mutex
	server  *grpc.Server
	health  *health.Server
	stopped bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *grpcServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *grpcServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create TCP socket: %w", err)
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
	}
	if config.LogLevel == "debug" {
		opts = append(opts, grpc.UnaryInterceptor(logInterceptor))
	}
	server := grpc.NewServer(opts...)
	server.RegisterService(&serviceDesc, t)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return listener.Close()
	}
	t.server = server
	t.health = healthServer
	t.mu.Unlock()

	Logger.Infof("Starting gRPC server on %s", listener.Addr())

	// Serve returns nil after GracefulStop or Stop
	return server.Serve(listener)
}

func (t *grpcServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.stopped = true
	server, healthServer := t.server, t.health
	t.mu.Unlock()

	if server == nil {
		return nil
	}

	// peers polling the health service see NOT_SERVING from now on
	healthServer.Shutdown()

	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		server.Stop()
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Service implementation
// --------------------------------------------------------------------------

// Send implements transportServer
func (t *grpcServerTransport) Send(_ context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return wrapperspb.Bytes(t.handler(req.GetValue())), nil
}

// logInterceptor logs every request (only installed with log level debug)
func logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	Logger.Debugf("%s took %s (err=%v)", info.FullMethod, time.Since(start), err)
	return resp, err
}
