package http

import (
	"testing"

	transporttesting "github.com/ValentinKolb/qKV/rpc/transport/testing"
)

func Test(t *testing.T) {
	transporttesting.RunTransportTests(t, "HTTP", NewHttpServerTransport, NewHttpClientTransport, transporttesting.FreeTCPEndpoint)
}
