// Package testing provides a conformance suite for peer transports. Every
// transport runs it from its own tests:
//
//	func Test(t *testing.T) {
//		transporttesting.RunTransportTests(t, "TCP",
//			NewTCPServerTransport, NewTCPClientTransport, transporttesting.FreeTCPEndpoint)
//	}
package testing
