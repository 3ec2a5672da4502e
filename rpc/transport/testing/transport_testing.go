package testing

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServerFactory creates a new, unstarted server transport
type ServerFactory func() transport.IRPCServerTransport

// ClientFactory creates a new, unconnected client transport
type ClientFactory func() transport.IRPCClientTransport

// EndpointFactory returns a fresh endpoint the server can listen on
type EndpointFactory func(t *testing.T) string

// blockMarker makes the test handler block until the server shuts down
var blockMarker = []byte("block")

// RunTransportTests runs the conformance tests every transport must pass.
func RunTransportTests(t *testing.T, name string, newServer ServerFactory, newClient ClientFactory, endpoint EndpointFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, newServer, newClient, endpoint(t))
		})
		t.Run("EmptyPayload", func(t *testing.T) {
			testEmptyPayload(t, newServer, newClient, endpoint(t))
		})
		t.Run("ConcurrentCorrelation", func(t *testing.T) {
			testConcurrentCorrelation(t, newServer, newClient, endpoint(t))
		})
		t.Run("ContextDeadline", func(t *testing.T) {
			testContextDeadline(t, newServer, newClient, endpoint(t))
		})
		t.Run("SendWithoutConnect", func(t *testing.T) {
			testSendWithoutConnect(t, newClient)
		})
		t.Run("ServerStartsLater", func(t *testing.T) {
			testServerStartsLater(t, newServer, newClient, endpoint(t))
		})
		t.Run("Shutdown", func(t *testing.T) {
			testShutdown(t, newServer, newClient, endpoint(t))
		})
	})
}

// --------------------------------------------------------------------------
// Endpoint helpers
// --------------------------------------------------------------------------

// FreeTCPEndpoint returns a localhost address with a currently unused port
func FreeTCPEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// UnixSocketEndpoint returns a socket path in a temporary directory.
// os.MkdirTemp keeps the path below the socket path limit.
func UnixSocketEndpoint(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "qkv")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "peer.sock")
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// echoHandler answers with "echo:" + request, blockMarker blocks until release is closed
func echoHandler(release <-chan struct{}) transport.ServerHandleFunc {
	return func(req []byte) []byte {
		if bytes.Equal(req, blockMarker) {
			<-release
		}
		return append([]byte("echo:"), req...)
	}
}

// startServer starts a server and stops it when the test ends. The returned
// channel receives the result of Listen.
func startServer(t *testing.T, newServer ServerFactory, endpoint string, release chan struct{}) (transport.IRPCServerTransport, <-chan error) {
	t.Helper()

	server := newServer()
	server.RegisterHandler(echoHandler(release))

	config := common.ServerConfig{
		Timeout: 5 * time.Second,
		Transport: common.ServerTransportConfig{
			Endpoint: endpoint,
		},
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- server.Listen(config) }()

	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server, listenErr
}

// connect creates a lazy client for endpoint
func connect(t *testing.T, newClient ClientFactory, endpoint string) transport.IRPCClientTransport {
	t.Helper()

	client := newClient()
	require.NoError(t, client.Connect(common.ClientConfig{
		Timeout: 2 * time.Second,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{endpoint},
			RetryCount: 1,
			Lazy:       true,
		},
	}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// waitReady blocks until the server answers
func waitReady(t *testing.T, client transport.IRPCClientTransport) {
	t.Helper()
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := client.Send(ctx, []byte("ping"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "server did not become ready")
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func testRoundTrip(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	startServer(t, newServer, endpoint, make(chan struct{}))
	client := connect(t, newClient, endpoint)
	waitReady(t, client)

	resp, err := client.Send(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", string(resp))

	large := bytes.Repeat([]byte("x"), 1<<20)
	resp, err = client.Send(context.Background(), large)
	require.NoError(t, err)
	assert.Equal(t, len(large)+len("echo:"), len(resp))
}

func testEmptyPayload(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	startServer(t, newServer, endpoint, make(chan struct{}))
	client := connect(t, newClient, endpoint)
	waitReady(t, client)

	resp, err := client.Send(context.Background(), []byte{})
	require.NoError(t, err)
	assert.Equal(t, "echo:", string(resp))
}

func testConcurrentCorrelation(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	startServer(t, newServer, endpoint, make(chan struct{}))
	client := connect(t, newClient, endpoint)
	waitReady(t, client)

	const n = 200
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req-%d", i)
			resp, err := client.Send(context.Background(), []byte(req))
			if err != nil {
				errs <- err
				return
			}
			if string(resp) != "echo:"+req {
				errs <- fmt.Errorf("request %q got response %q", req, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func testContextDeadline(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	startServer(t, newServer, endpoint, make(chan struct{}))
	client := connect(t, newClient, endpoint)
	waitReady(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Send(ctx, blockMarker)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "deadline of the context was not honored")

	// the connection is still usable
	resp, err := client.Send(context.Background(), []byte("after"))
	require.NoError(t, err)
	assert.Equal(t, "echo:after", string(resp))
}

func testSendWithoutConnect(t *testing.T, newClient ClientFactory) {
	client := newClient()
	_, err := client.Send(context.Background(), []byte("hello"))
	assert.Error(t, err)
}

func testServerStartsLater(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	client := connect(t, newClient, endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	_, err := client.Send(ctx, []byte("too early"))
	cancel()
	require.Error(t, err)

	startServer(t, newServer, endpoint, make(chan struct{}))
	waitReady(t, client)
}

func testShutdown(t *testing.T, newServer ServerFactory, newClient ClientFactory, endpoint string) {
	server, listenErr := startServer(t, newServer, endpoint, make(chan struct{}))
	client := connect(t, newClient, endpoint)
	waitReady(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-listenErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after Shutdown")
	}

	sendCtx, sendCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer sendCancel()
	_, err := client.Send(sendCtx, []byte("after shutdown"))
	assert.Error(t, err)
}
