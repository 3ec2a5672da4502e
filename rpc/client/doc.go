// Package client implements the remote node target of qKV.
//
// RPCTarget implements coordinator.Target by sending replica messages to the
// replica endpoint of a peer. The coordinator holds one RPCTarget per peer and
// a local target for its own node.
//
// Error handling:
//
//   - Transport failures (peer down, timeout, connection reset) and answers that
//     cannot be decoded are returned as errors. The coordinator counts them as
//     node errors.
//
//   - An answer carrying an error message (storage failure on the peer) becomes
//     replica.StatusInternalError, which is counted the same way.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Timeout: 2 * time.Second,
//		Transport: common.ClientTransportConfig{
//			Endpoints:  []string{"10.0.0.2:9090"},
//			RetryCount: 1,
//			Lazy:       true,
//		},
//	}
//	target, err := client.NewRPCTarget("n2", config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	resp, err := target.Get(ctx, "mykey")
//
// Thread Safety:
//
//	RPCTarget is safe for concurrent use, the coordinator calls it from one
//	goroutine per request.
package client
