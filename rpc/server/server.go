package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/qKV/api"
	"github.com/ValentinKolb/qKV/lib/coordinator"
	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/ValentinKolb/qKV/lib/store/lstore"
	"github.com/ValentinKolb/qKV/lib/topology"
	"github.com/ValentinKolb/qKV/rpc/client"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/serializer"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// ShutdownTimeout bounds the graceful shutdown of the listeners
const ShutdownTimeout = 10 * time.Second

// ClientTransportFactory creates the client transport for one peer
type ClientTransportFactory func() transport.IRPCClientTransport

// NewRPCServer creates a new node.
// The server transport serves the local replica endpoint to the peers, newClient
// creates the transports the coordinator uses to reach them. All nodes of a
// cluster must use the same transport and serializer.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		tcp.NewTCPClientTransport,
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	newClient ClientTransportFactory,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		newClient:  newClient,
		serializer: serializer,
		adapter:    NewReplicaServerAdapter(),
		ready:      make(chan struct{}),
	}
}

// RPCServer is a qKV node: local store, replica endpoint, coordinator, the
// peer transport and the client facing API.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	newClient  ClientTransportFactory
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter

	store       store.IStore
	endpoint    *replica.Endpoint
	coordinator *coordinator.Coordinator
	peers       []*client.RPCTarget
	api         *http.Server
	apiAddr     net.Addr

	ready    chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// init builds all components of the node
func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Starting qKV node%s", s.config.String())

	topo, err := s.topology()
	if err != nil {
		return err
	}

	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }
	s.store, err = lstore.NewLocalStore(dbFactory, &lstore.Options{DataDir: s.config.DataDir, SyncWrites: s.config.SyncWrites})
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	s.endpoint = replica.NewEndpoint(s.store)

	// one target per topology entry, fixed for the lifetime of the node
	targets := make(map[string]coordinator.Target, topo.Size())
	for _, node := range topo.Nodes() {
		if topo.IsSelf(node.ID) {
			targets[node.ID] = coordinator.NewLocalTarget(s.endpoint)
			continue
		}

		target, err := client.NewRPCTarget(node.ID, s.peerConfig(node), s.newClient(), s.serializer)
		if err != nil {
			return err
		}
		s.peers = append(s.peers, target)
		targets[node.ID] = target
	}

	s.coordinator, err = coordinator.New(topo, targets, &coordinator.Options{Timeout: s.config.Timeout})
	if err != nil {
		return err
	}

	s.registerTransportHandler()

	s.api = &http.Server{
		Handler:           api.NewHandler(s.coordinator, s.endpoint),
		ReadHeaderTimeout: 5 * time.Second,
	}

	Logger.Infof("qKV setup completed successfully (%d nodes, default quorum %s)",
		topo.Size(), s.coordinator.DefaultQuorum())
	return nil
}

func (s *RPCServer) topology() (*topology.Topology, error) {
	nodes := make([]topology.Node, len(s.config.ClusterMembers))
	for i, m := range s.config.ClusterMembers {
		nodes[i] = topology.Node{ID: m.ID, Address: m.Address}
	}
	topo, err := topology.New(nodes, s.config.ReplicaID)
	if err != nil {
		return nil, fmt.Errorf("invalid cluster configuration: %w", err)
	}
	return topo, nil
}

// peerConfig returns the client config used to reach node
func (s *RPCServer) peerConfig(node topology.Node) common.ClientConfig {
	return common.ClientConfig{
		Timeout: s.config.Timeout,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{node.Address},
			RetryCount:             1,
			ConnectionsPerEndpoint: 1,
			Lazy:                   true,
			SocketConf:             s.config.Transport.SocketConf,
			TCPConf:                s.config.Transport.TCPConf,
		},
	}
}

// registerTransportHandler decodes peer requests and lets the adapter answer them
func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = s.adapter.Handle(&msg, s.endpoint)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("Failed to serialize %s response: %v", respMsg.MsgType, err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse("failed to serialize response"))
		}
		return val
	})
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Serve starts the node and blocks until SIGINT or SIGTERM is received
func (s *RPCServer) Serve() error {
	return s.ServeContext(context.Background())
}

// ServeContext starts the node and blocks until ctx is done, a signal is
// received or a listener fails. The node is shut down before it returns.
func (s *RPCServer) ServeContext(ctx context.Context) error {
	if err := s.init(); err != nil {
		s.closeComponents()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiListener, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		s.closeComponents()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Endpoint, err)
	}
	s.apiAddr = apiListener.Addr()

	errCh := make(chan error, 2)
	go func() {
		if err := s.transport.Listen(s.config); err != nil {
			errCh <- fmt.Errorf("peer transport failed: %w", err)
		}
	}()
	go func() {
		Logger.Infof("Starting API server on %s", apiListener.Addr())
		if err := s.api.Serve(apiListener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
	}()

	close(s.ready)

	var serveErr error
	select {
	case <-ctx.Done():
		Logger.Infof("Shutting down")
	case serveErr = <-errCh:
		Logger.Errorf("%v", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Ready is closed once the listeners are started
func (s *RPCServer) Ready() <-chan struct{} {
	return s.ready
}

// APIAddr returns the address of the API listener (nil before Ready)
func (s *RPCServer) APIAddr() net.Addr {
	return s.apiAddr
}

// Shutdown stops the listeners, closes the peer connections and persists the
// local store. It is safe to call more than once.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		var errs []error
		if s.api != nil {
			if err := s.api.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("api shutdown: %w", err))
			}
		}
		if err := s.transport.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("transport shutdown: %w", err))
		}
		if err := s.closeComponents(); err != nil {
			errs = append(errs, err)
		}
		s.stopErr = errors.Join(errs...)
		Logger.Infof("qKV node %s stopped", s.config.ReplicaID)
	})
	return s.stopErr
}

// closeComponents closes the peer targets and the store
func (s *RPCServer) closeComponents() error {
	for _, peer := range s.peers {
		if err := peer.Close(); err != nil {
			Logger.Warningf("Failed to close connection to node %s: %v", peer.NodeID(), err)
		}
	}
	s.peers = nil

	if s.store == nil {
		return nil
	}
	// expected shutdown faults (closed store, missing data dir) are swallowed by the store
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
