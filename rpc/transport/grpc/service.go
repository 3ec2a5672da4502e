package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the gRPC service of the peer transport, also used for the health status
const ServiceName = "qkv.rpc.Transport"

// sendMethod is the full name of the only method of the service
const sendMethod = "/" + ServiceName + "/Send"

// transportServer is the server API of the service. The payload is the
// serialized message, so no generated code is needed.
type transportServer interface {
	Send(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// serviceDesc describes the service for grpc.Server.RegisterService
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*transportServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Send",
			Handler:    sendHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qkv/rpc/transport.proto",
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transportServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: sendMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transportServer).Send(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
