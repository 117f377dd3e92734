package feedpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "feed.FeedService"

	SubmitMethod    = "/" + ServiceName + "/Submit"
	GetFeedMethod   = "/" + ServiceName + "/GetFeed"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
	GetMediaMethod  = "/" + ServiceName + "/GetMedia"
	SweepMethod     = "/" + ServiceName + "/Sweep"
	DeleteMethod    = "/" + ServiceName + "/Delete"
)

type FeedServiceServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	GetFeed(context.Context, *GetFeedRequest) (*GetFeedResponse, error)
	Subscribe(*SubscribeRequest, FeedService_SubscribeServer) error
	GetMedia(context.Context, *GetMediaRequest) (*GetMediaResponse, error)
	Sweep(context.Context, *SweepRequest) (*SweepResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

type FeedService_SubscribeServer interface {
	Send(*FeedEvent) error
	grpc.ServerStream
}

type UnimplementedFeedServiceServer struct{}

func (UnimplementedFeedServiceServer) Submit(context.Context, *SubmitRequest) (*SubmitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedFeedServiceServer) GetFeed(context.Context, *GetFeedRequest) (*GetFeedResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetFeed not implemented")
}
func (UnimplementedFeedServiceServer) Subscribe(*SubscribeRequest, FeedService_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedFeedServiceServer) GetMedia(context.Context, *GetMediaRequest) (*GetMediaResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMedia not implemented")
}
func (UnimplementedFeedServiceServer) Sweep(context.Context, *SweepRequest) (*SweepResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Sweep not implemented")
}
func (UnimplementedFeedServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}

// RegisterFeedServiceServer registers srv. The grpc.Server must be created with
// grpc.ForceServerCodec(Codec{}).
func RegisterFeedServiceServer(s grpc.ServiceRegistrar, srv FeedServiceServer) {
	s.RegisterService(&FeedService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(FeedServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FeedServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FeedServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FeedServiceServer).Subscribe(in, &feedServiceSubscribeServer{stream})
}

type feedServiceSubscribeServer struct {
	grpc.ServerStream
}

func (x *feedServiceSubscribeServer) Send(m *FeedEvent) error {
	return x.ServerStream.SendMsg(m)
}

var FeedService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(SubmitMethod, FeedServiceServer.Submit)},
		{MethodName: "GetFeed", Handler: unaryHandler(GetFeedMethod, FeedServiceServer.GetFeed)},
		{MethodName: "GetMedia", Handler: unaryHandler(GetMediaMethod, FeedServiceServer.GetMedia)},
		{MethodName: "Sweep", Handler: unaryHandler(SweepMethod, FeedServiceServer.Sweep)},
		{MethodName: "Delete", Handler: unaryHandler(DeleteMethod, FeedServiceServer.Delete)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "proto/feedpb/feed.proto",
}

type FeedServiceClient interface {
	Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error)
	GetFeed(ctx context.Context, in *GetFeedRequest, opts ...grpc.CallOption) (*GetFeedResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (FeedService_SubscribeClient, error)
	GetMedia(ctx context.Context, in *GetMediaRequest, opts ...grpc.CallOption) (*GetMediaResponse, error)
	Sweep(ctx context.Context, in *SweepRequest, opts ...grpc.CallOption) (*SweepResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type FeedService_SubscribeClient interface {
	Recv() (*FeedEvent, error)
	grpc.ClientStream
}

type feedServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFeedServiceClient forces Codec on every call.
func NewFeedServiceClient(cc grpc.ClientConnInterface) FeedServiceClient {
	return &feedServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func (c *feedServiceClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	out := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, SubmitMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedServiceClient) GetFeed(ctx context.Context, in *GetFeedRequest, opts ...grpc.CallOption) (*GetFeedResponse, error) {
	out := new(GetFeedResponse)
	if err := c.cc.Invoke(ctx, GetFeedMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedServiceClient) GetMedia(ctx context.Context, in *GetMediaRequest, opts ...grpc.CallOption) (*GetMediaResponse, error) {
	out := new(GetMediaResponse)
	if err := c.cc.Invoke(ctx, GetMediaMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedServiceClient) Sweep(ctx context.Context, in *SweepRequest, opts ...grpc.CallOption) (*SweepResponse, error) {
	out := new(SweepResponse)
	if err := c.cc.Invoke(ctx, SweepMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, DeleteMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (FeedService_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &FeedService_ServiceDesc.Streams[0], SubscribeMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &feedServiceSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type feedServiceSubscribeClient struct {
	grpc.ClientStream
}

func (x *feedServiceSubscribeClient) Recv() (*FeedEvent, error) {
	m := new(FeedEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
