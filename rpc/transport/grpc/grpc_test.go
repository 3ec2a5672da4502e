package grpc

import (
	"testing"

	transporttesting "github.com/ValentinKolb/qKV/rpc/transport/testing"
)

func Test(t *testing.T) {
	transporttesting.RunTransportTests(t, "gRPC", NewGRPCServerTransport, NewGRPCClientTransport, transporttesting.FreeTCPEndpoint)
}
