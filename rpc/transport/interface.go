package transport

import (
	"context"
	"errors"

	"github.com/ValentinKolb/qKV/rpc/common"
)

// ErrNotConnected is returned by Send if Connect was not called (or Close was)
var ErrNotConnected = errors.New("transport not connected")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a serialized request and returns the serialized response
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the peer transport
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for all incoming requests.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil once Shutdown was called.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting requests and waits (bounded by ctx) for the
	// requests in flight
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// The deadline of ctx bounds the whole call including retries.
	Send(ctx context.Context, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
