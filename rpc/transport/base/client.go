package base

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// link is one established net connection. Requests are correlated per link,
// so a broken link only fails the requests written to it.
type link struct {
	conn    net.Conn
	pending *xsync.MapOf[uint64, chan responseResult]
	writeMu sync.Mutex
}

// clientConnection is one pool slot for an endpoint. It re-dials on demand.
type clientConnection struct {
	endpoint string
	parent   *clientTransport
	mu       sync.Mutex // Protects link
	link     *link
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin
	nextRequestID atomic.Uint64
	closed        atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.closeConnections()
	t.config = config
	t.closed.Store(false)

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)
	connected := 0

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				parent:   t,
			}

			if _, err := clientConn.getLink(context.Background()); err != nil {
				if !config.Transport.Lazy {
					Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
					continue
				}
				Logger.Debugf("Endpoint %s not reachable yet (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
			} else {
				connected++
			}

			connections = append(connections, clientConn)
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Debugf("Connected %d out of %d connections to %d endpoints using %s transport",
		connected, len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, req []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.ErrNotConnected
	}

	attempts := max(1, t.config.Transport.RetryCount)
	backoff := 50 * time.Millisecond

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, transport.ErrNotConnected
		}

		data, err := conn.roundTrip(ctx, t.nextRequestID.Add(1), req)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, transport.ErrNotConnected) {
			break
		}
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, attempts, conn.endpoint, err)

		if i+1 < attempts {
			// exponential backoff with +-10% jitter
			jitter := time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64()))
			select {
			case <-time.After(jitter):
			case <-ctx.Done():
				return nil, fmt.Errorf("request aborted after %d attempts: %w", i+1, ctx.Err())
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request: %w", lastErr)
}

func (t *clientTransport) Close() error {
	t.closed.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		index := t.nextConnIndex.Add(1) % uint64(len(t.connections))
		return t.connections[index]
	}
}

// closeConnections closes all connections and fails the requests in flight
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, conn := range connections {
		conn.mu.Lock()
		l := conn.link
		conn.mu.Unlock()
		if l != nil {
			conn.drop(l, transport.ErrNotConnected)
		}
	}
}

// deadline returns the deadline of a request: the one of ctx or now + Timeout
func (t *clientTransport) deadline(ctx context.Context) (time.Time, bool) {
	if d, ok := ctx.Deadline(); ok {
		return d, true
	}
	if t.config.Timeout > 0 {
		return time.Now().Add(t.config.Timeout), true
	}
	return time.Time{}, false
}

// getLink returns the current link, dialing the endpoint if there is none
func (c *clientConnection) getLink(ctx context.Context) (*link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link != nil {
		return c.link, nil
	}
	if c.parent.closed.Load() {
		return nil, transport.ErrNotConnected
	}

	if c.parent.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.parent.config.Timeout)
		defer cancel()
	}

	conn, err := c.parent.connector.Connect(ctx, c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	l := &link{
		conn:    conn,
		pending: xsync.NewMapOf[uint64, chan responseResult](),
	}
	c.link = l
	go c.readResponses(l)

	Logger.Debugf("Connected to %s", c.endpoint)
	return l, nil
}

// roundTrip writes one request and waits for its response
func (c *clientConnection) roundTrip(ctx context.Context, requestID uint64, req []byte) ([]byte, error) {
	l, err := c.getLink(ctx)
	if err != nil {
		return nil, err
	}

	respCh := make(chan responseResult, 1)
	l.pending.Store(requestID, respCh)
	defer l.pending.Delete(requestID)

	deadline, hasDeadline := c.parent.deadline(ctx)

	l.writeMu.Lock()
	if hasDeadline {
		_ = l.conn.SetWriteDeadline(deadline)
	}
	err = writeFrame(l.conn, requestID, req)
	l.writeMu.Unlock()
	if err != nil {
		c.drop(l, err)
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	var timeoutCh <-chan time.Time
	if hasDeadline {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeoutCh:
		return nil, fmt.Errorf("request to %s timed out", c.endpoint)
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses(l *link) {
	for {
		// nil buffer: the data is handed to another goroutine
		requestID, data, err := readFrame(l.conn, nil)
		if err != nil {
			c.drop(l, fmt.Errorf("error reading response: %w", err))
			return
		}

		if respCh, found := l.pending.LoadAndDelete(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			// the request already timed out
			Logger.Debugf("Received response for unknown request ID %d from %s", requestID, c.endpoint)
		}
	}
}

// drop closes a broken link and fails its pending requests. The next request re-dials.
func (c *clientConnection) drop(l *link, cause error) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	c.mu.Unlock()

	_ = l.conn.Close()
	l.pending.Range(func(requestID uint64, _ chan responseResult) bool {
		if respCh, found := l.pending.LoadAndDelete(requestID); found {
			respCh <- responseResult{err: cause}
		}
		return true
	})
}
