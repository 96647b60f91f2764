package lbgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func grpcUnimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// LoadBalancerClient is the hand-maintained equivalent of the
// pb.DaemonServiceClient the teacher's internal/rpc/client.go consumes —
// one method per RPC in spec.md §6's control-plane list, each a plain
// unary call carrying codecName (see codec.go) as its content-subtype.
type LoadBalancerClient interface {
	ReserveLoadBalancer(ctx context.Context, in *ReserveLoadBalancerRequest, opts ...grpc.CallOption) (*ReserveLoadBalancerReply, error)
	GetLoadBalancer(ctx context.Context, in *GetLoadBalancerRequest, opts ...grpc.CallOption) (*GetLoadBalancerReply, error)
	FreeLoadBalancer(ctx context.Context, in *FreeLoadBalancerRequest, opts ...grpc.CallOption) (*FreeLoadBalancerReply, error)
	LoadBalancerStatus(ctx context.Context, in *LoadBalancerStatusRequest, opts ...grpc.CallOption) (*LoadBalancerStatusReply, error)
	Overview(ctx context.Context, in *OverviewRequest, opts ...grpc.CallOption) (*OverviewReply, error)
	AddSenders(ctx context.Context, in *AddSendersRequest, opts ...grpc.CallOption) (*AddSendersReply, error)
	RemoveSenders(ctx context.Context, in *RemoveSendersRequest, opts ...grpc.CallOption) (*RemoveSendersReply, error)
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterReply, error)
	Deregister(ctx context.Context, in *DeregisterRequest, opts ...grpc.CallOption) (*DeregisterReply, error)
	SendState(ctx context.Context, in *SendStateRequest, opts ...grpc.CallOption) (*SendStateReply, error)
	Version(ctx context.Context, in *VersionRequest, opts ...grpc.CallOption) (*VersionReply, error)
}

type loadBalancerClient struct {
	cc grpc.ClientConnInterface
}

// NewLoadBalancerClient wraps cc (typically produced by grpc.NewClient, as
// the teacher's internal/rpc.NewClient wraps its own unix-socket dial).
func NewLoadBalancerClient(cc grpc.ClientConnInterface) LoadBalancerClient {
	return &loadBalancerClient{cc: cc}
}

// callOpts prepends the json content-subtype so the request is encoded with
// jsonCodec regardless of the ClientConn's default codec.
func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *loadBalancerClient) ReserveLoadBalancer(ctx context.Context, in *ReserveLoadBalancerRequest, opts ...grpc.CallOption) (*ReserveLoadBalancerReply, error) {
	out := new(ReserveLoadBalancerReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ReserveLoadBalancer", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) GetLoadBalancer(ctx context.Context, in *GetLoadBalancerRequest, opts ...grpc.CallOption) (*GetLoadBalancerReply, error) {
	out := new(GetLoadBalancerReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetLoadBalancer", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) FreeLoadBalancer(ctx context.Context, in *FreeLoadBalancerRequest, opts ...grpc.CallOption) (*FreeLoadBalancerReply, error) {
	out := new(FreeLoadBalancerReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/FreeLoadBalancer", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) LoadBalancerStatus(ctx context.Context, in *LoadBalancerStatusRequest, opts ...grpc.CallOption) (*LoadBalancerStatusReply, error) {
	out := new(LoadBalancerStatusReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/LoadBalancerStatus", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) Overview(ctx context.Context, in *OverviewRequest, opts ...grpc.CallOption) (*OverviewReply, error) {
	out := new(OverviewReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Overview", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) AddSenders(ctx context.Context, in *AddSendersRequest, opts ...grpc.CallOption) (*AddSendersReply, error) {
	out := new(AddSendersReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/AddSenders", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) RemoveSenders(ctx context.Context, in *RemoveSendersRequest, opts ...grpc.CallOption) (*RemoveSendersReply, error) {
	out := new(RemoveSendersReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/RemoveSenders", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterReply, error) {
	out := new(RegisterReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Register", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) Deregister(ctx context.Context, in *DeregisterRequest, opts ...grpc.CallOption) (*DeregisterReply, error) {
	out := new(DeregisterReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Deregister", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) SendState(ctx context.Context, in *SendStateRequest, opts ...grpc.CallOption) (*SendStateReply, error) {
	out := new(SendStateReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SendState", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loadBalancerClient) Version(ctx context.Context, in *VersionRequest, opts ...grpc.CallOption) (*VersionReply, error) {
	out := new(VersionReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Version", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
