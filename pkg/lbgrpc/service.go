package lbgrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC full-service name, matching
// original_source/grpc/loadbalancer.proto's `service LoadBalancer` (package
// loadbalancer) even though that .proto is not compiled here.
const ServiceName = "loadbalancer.LoadBalancer"

// LoadBalancerServer is implemented by the control-plane RPC handler; it is
// the server-side counterpart of LoadBalancerClient. internal/lbmanager
// only ever consumes LoadBalancerClient — this interface exists for test
// doubles and for anyone standing up a local control-plane stub.
type LoadBalancerServer interface {
	ReserveLoadBalancer(context.Context, *ReserveLoadBalancerRequest) (*ReserveLoadBalancerReply, error)
	GetLoadBalancer(context.Context, *GetLoadBalancerRequest) (*GetLoadBalancerReply, error)
	FreeLoadBalancer(context.Context, *FreeLoadBalancerRequest) (*FreeLoadBalancerReply, error)
	LoadBalancerStatus(context.Context, *LoadBalancerStatusRequest) (*LoadBalancerStatusReply, error)
	Overview(context.Context, *OverviewRequest) (*OverviewReply, error)
	AddSenders(context.Context, *AddSendersRequest) (*AddSendersReply, error)
	RemoveSenders(context.Context, *RemoveSendersRequest) (*RemoveSendersReply, error)
	Register(context.Context, *RegisterRequest) (*RegisterReply, error)
	Deregister(context.Context, *DeregisterRequest) (*DeregisterReply, error)
	SendState(context.Context, *SendStateRequest) (*SendStateReply, error)
	Version(context.Context, *VersionRequest) (*VersionReply, error)
}

// UnimplementedLoadBalancerServer can be embedded by a partial server
// implementation, matching the forward-compatibility pattern protoc-gen-go-grpc
// generates (see the teacher's pb.UnimplementedDaemonServiceServer).
type UnimplementedLoadBalancerServer struct{}

func (UnimplementedLoadBalancerServer) ReserveLoadBalancer(context.Context, *ReserveLoadBalancerRequest) (*ReserveLoadBalancerReply, error) {
	return nil, grpcUnimplemented("ReserveLoadBalancer")
}
func (UnimplementedLoadBalancerServer) GetLoadBalancer(context.Context, *GetLoadBalancerRequest) (*GetLoadBalancerReply, error) {
	return nil, grpcUnimplemented("GetLoadBalancer")
}
func (UnimplementedLoadBalancerServer) FreeLoadBalancer(context.Context, *FreeLoadBalancerRequest) (*FreeLoadBalancerReply, error) {
	return nil, grpcUnimplemented("FreeLoadBalancer")
}
func (UnimplementedLoadBalancerServer) LoadBalancerStatus(context.Context, *LoadBalancerStatusRequest) (*LoadBalancerStatusReply, error) {
	return nil, grpcUnimplemented("LoadBalancerStatus")
}
func (UnimplementedLoadBalancerServer) Overview(context.Context, *OverviewRequest) (*OverviewReply, error) {
	return nil, grpcUnimplemented("Overview")
}
func (UnimplementedLoadBalancerServer) AddSenders(context.Context, *AddSendersRequest) (*AddSendersReply, error) {
	return nil, grpcUnimplemented("AddSenders")
}
func (UnimplementedLoadBalancerServer) RemoveSenders(context.Context, *RemoveSendersRequest) (*RemoveSendersReply, error) {
	return nil, grpcUnimplemented("RemoveSenders")
}
func (UnimplementedLoadBalancerServer) Register(context.Context, *RegisterRequest) (*RegisterReply, error) {
	return nil, grpcUnimplemented("Register")
}
func (UnimplementedLoadBalancerServer) Deregister(context.Context, *DeregisterRequest) (*DeregisterReply, error) {
	return nil, grpcUnimplemented("Deregister")
}
func (UnimplementedLoadBalancerServer) SendState(context.Context, *SendStateRequest) (*SendStateReply, error) {
	return nil, grpcUnimplemented("SendState")
}
func (UnimplementedLoadBalancerServer) Version(context.Context, *VersionRequest) (*VersionReply, error) {
	return nil, grpcUnimplemented("Version")
}

// ServiceDesc is the hand-maintained equivalent of the _LoadBalancer_serviceDesc
// protoc-gen-go-grpc would normally emit from loadbalancer.proto.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LoadBalancerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveLoadBalancer", Handler: reserveLoadBalancerHandler},
		{MethodName: "GetLoadBalancer", Handler: getLoadBalancerHandler},
		{MethodName: "FreeLoadBalancer", Handler: freeLoadBalancerHandler},
		{MethodName: "LoadBalancerStatus", Handler: loadBalancerStatusHandler},
		{MethodName: "Overview", Handler: overviewHandler},
		{MethodName: "AddSenders", Handler: addSendersHandler},
		{MethodName: "RemoveSenders", Handler: removeSendersHandler},
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Deregister", Handler: deregisterHandler},
		{MethodName: "SendState", Handler: sendStateHandler},
		{MethodName: "Version", Handler: versionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "loadbalancer.proto",
}

// RegisterLoadBalancerServer wires srv into s the way
// pb.RegisterDaemonServiceServer would.
func RegisterLoadBalancerServer(s grpc.ServiceRegistrar, srv LoadBalancerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func reserveLoadBalancerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReserveLoadBalancerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).ReserveLoadBalancer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ReserveLoadBalancer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).ReserveLoadBalancer(ctx, req.(*ReserveLoadBalancerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getLoadBalancerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetLoadBalancerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).GetLoadBalancer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/GetLoadBalancer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).GetLoadBalancer(ctx, req.(*GetLoadBalancerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func freeLoadBalancerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FreeLoadBalancerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).FreeLoadBalancer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/FreeLoadBalancer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).FreeLoadBalancer(ctx, req.(*FreeLoadBalancerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func loadBalancerStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoadBalancerStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).LoadBalancerStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/LoadBalancerStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).LoadBalancerStatus(ctx, req.(*LoadBalancerStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func overviewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OverviewRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).Overview(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Overview"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).Overview(ctx, req.(*OverviewRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func addSendersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddSendersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).AddSenders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/AddSenders"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).AddSenders(ctx, req.(*AddSendersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func removeSendersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveSendersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).RemoveSenders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/RemoveSenders"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).RemoveSenders(ctx, req.(*RemoveSendersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Register"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deregisterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeregisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).Deregister(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Deregister"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).Deregister(ctx, req.(*DeregisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func sendStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SendStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).SendState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/SendState"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).SendState(ctx, req.(*SendStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func versionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(VersionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoadBalancerServer).Version(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Version"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LoadBalancerServer).Version(ctx, req.(*VersionRequest))
	}
	return interceptor(ctx, in, info, handler)
}
