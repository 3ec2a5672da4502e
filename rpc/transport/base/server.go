package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	config            common.ServerConfig
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	shutdown bool
	active   sync.WaitGroup // one per open connection
}

// DefaultWorkersPerConn is used if the config does not set WorkersPerConn
const DefaultWorkersPerConn = 64

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool.
// bufferSize is the size of the pooled read buffers, larger requests allocate.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     make(map[net.Conn]struct{}),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	t.config = config
	// minimum one worker per connection
	t.maxWorkersPerConn = max(1, config.Transport.WorkersPerConn)
	if config.Transport.WorkersPerConn == 0 {
		t.maxWorkersPerConn = DefaultWorkersPerConn
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			// avoid a hot loop on persistent errors (e.g. too many open files)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		if !t.track(conn) {
			_ = conn.Close()
			return nil
		}
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.shutdown = true
	if t.listener != nil {
		_ = t.listener.Close()
	}
	// unblock the readers, workers in flight still write their response
	for conn := range t.conns {
		if c, ok := conn.(interface{ CloseRead() error }); ok {
			_ = c.CloseRead()
		} else {
			_ = conn.SetReadDeadline(time.Now())
		}
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		for conn := range t.conns {
			_ = conn.Close()
		}
		t.mu.Unlock()
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// track registers an accepted connection, it returns false during shutdown
func (t *serverTransport) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return false
	}
	t.conns[conn] = struct{}{}
	t.active.Add(1)
	return true
}

func (t *serverTransport) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	t.active.Done()
}

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.untrack(conn)
	defer conn.Close()

	timeout := t.config.Timeout

	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)
	var wg sync.WaitGroup
	var connMutex sync.Mutex

	respond := func(requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(data)
		Logger.Debugf("Processed request %d from %s in %s", requestID, conn.RemoteAddr(), time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if err := writeFrame(conn, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response %d: %v", requestID, err)
		}
	}

	for {
		bufPtr := t.bufferPool.Get().(*[]byte)

		// idle peer connections stay open, so no read deadline here
		requestID, data, err := readFrame(conn, *bufPtr)
		if err != nil {
			t.bufferPool.Put(bufPtr)
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrUnexpectedEOF):
				Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
			case isTimeout(err):
				Logger.Debugf("Connection from %s closed by shutdown", conn.RemoteAddr())
			default:
				Logger.Errorf("Error reading request from %s: %v", conn.RemoteAddr(), err)
			}
			break
		}

		// blocks if maxWorkersPerConn is reached
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(bufPtr)
				<-workerSemaphore
				wg.Done()
			}()
			respond(requestID, data)
		}()
	}

	// in-progress requests still get their answer
	wg.Wait()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
