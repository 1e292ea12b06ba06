package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "omnichat.v1.Control"

// ControlServer is the server side of the control service.
type ControlServer interface {
	ListClients(context.Context, *ListClientsRequest) (*ListClientsResponse, error)
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
	StartAuth(context.Context, *StartAuthRequest) (*ClientResponse, error)
	SubmitAuth(context.Context, *SubmitAuthRequest) (*ClientResponse, error)
	Logout(context.Context, *LogoutRequest) (*ClientResponse, error)
	Contacts(context.Context, *ContactsRequest) (*ContactsResponse, error)
	Chats(context.Context, *ChatsRequest) (*ChatsResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Edit(context.Context, *EditRequest) (*ChangeResponse, error)
	Delete(context.Context, *DeleteRequest) (*ChangeResponse, error)
	Watch(*WatchRequest, grpc.ServerStream) error
}

// unary builds the method descriptor for one request/response call.
func unary[Req, Resp any](name string, call func(ControlServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControlServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).Watch(in, stream)
}

// ServiceDesc describes the control service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListClients", ControlServer.ListClients),
		unary("Open", ControlServer.Open),
		unary("StartAuth", ControlServer.StartAuth),
		unary("SubmitAuth", ControlServer.SubmitAuth),
		unary("Logout", ControlServer.Logout),
		unary("Contacts", ControlServer.Contacts),
		unary("Chats", ControlServer.Chats),
		unary("History", ControlServer.History),
		unary("Send", ControlServer.Send),
		unary("Edit", ControlServer.Edit),
		unary("Delete", ControlServer.Delete),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
}

// Register adds srv to s.
func Register(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}
