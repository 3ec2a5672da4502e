package server

import (
	"github.com/ValentinKolb/qKV/lib/replica"
	"github.com/ValentinKolb/qKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against the local replica endpoint and returns a response.
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, endpoint *replica.Endpoint) (resp *common.Message)
}
