package unix

import (
	"testing"

	transporttesting "github.com/ValentinKolb/qKV/rpc/transport/testing"
)

func Test(t *testing.T) {
	transporttesting.RunTransportTests(t, "Unix", NewUnixDefaultServerTransport, NewUnixClientTransport, transporttesting.UnixSocketEndpoint)
}
