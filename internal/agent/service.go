// Package agent exposes a timer controller over a local gRPC API.
package agent

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "tasktime.agent.v1.Timer"

// Method names.
const (
	MethodStatus      = "Status"
	MethodLoadUser    = "LoadUser"
	MethodStartTask   = "StartTask"
	MethodPauseTask   = "PauseTask"
	MethodResumeTask  = "ResumeTask"
	MethodStopTask    = "StopTask"
	MethodStartBreak  = "StartBreak"
	MethodPauseBreak  = "PauseBreak"
	MethodResumeBreak = "ResumeBreak"
	MethodStopBreak   = "StopBreak"
	MethodEvents      = "Events"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// TimerServer is the server side of the Timer service. Unary methods reply with the
// status after the call.
type TimerServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	LoadUser(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	StartTask(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	PauseTask(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResumeTask(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopTask(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	StartBreak(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PauseBreak(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResumeBreak(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopBreak(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Events(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// unary builds a MethodDesc that decodes a Req and dispatches to call.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}](name string, call func(TimerServer, context.Context, PReq) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TimerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(TimerServer), ctx, req.(PReq))
			})
		},
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TimerServer).Events(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the Timer service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TimerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[emptypb.Empty](MethodStatus, TimerServer.Status),
		unary[wrapperspb.Int64Value](MethodLoadUser, TimerServer.LoadUser),
		unary[wrapperspb.Int64Value](MethodStartTask, TimerServer.StartTask),
		unary[emptypb.Empty](MethodPauseTask, TimerServer.PauseTask),
		unary[emptypb.Empty](MethodResumeTask, TimerServer.ResumeTask),
		unary[wrapperspb.Int64Value](MethodStopTask, TimerServer.StopTask),
		unary[emptypb.Empty](MethodStartBreak, TimerServer.StartBreak),
		unary[emptypb.Empty](MethodPauseBreak, TimerServer.PauseBreak),
		unary[emptypb.Empty](MethodResumeBreak, TimerServer.ResumeBreak),
		unary[emptypb.Empty](MethodStopBreak, TimerServer.StopBreak),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    MethodEvents,
		Handler:       eventsHandler,
		ServerStreams: true,
	}},
	Metadata: "tasktime/agent/v1/timer.proto",
}

// RegisterTimerServer registers srv on s.
func RegisterTimerServer(s grpc.ServiceRegistrar, srv TimerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
