package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"moviedex/pkg/models"
)

const ServiceName = "moviedex.v1.Collection"

type GetStatusRequest struct {
	UserID      string `json:"userId"`
	TMDBMovieID int64  `json:"tmdbMovieId"`
}

type ListSavedRequest struct {
	UserID string `json:"userId"`
	// Tab is "favorites" (default) or "watched".
	Tab string `json:"tab"`
}

type ListSavedResponse struct {
	Items []models.SavedMovieSnapshot `json:"items"`
}

type TopTrendingRequest struct {
	Limit int `json:"limit"`
}

type TopTrendingResponse struct {
	Items []models.TrendingMovie `json:"items"`
}

// CollectionServer is implemented by Server.
type CollectionServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*models.SavedStatus, error)
	ListSaved(context.Context, *ListSavedRequest) (*ListSavedResponse, error)
	TopTrending(context.Context, *TopTrendingRequest) (*TopTrendingResponse, error)
}

func RegisterCollectionServer(s grpc.ServiceRegistrar, srv CollectionServer) {
	s.RegisterService(&CollectionServiceDesc, srv)
}

var CollectionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "ListSaved", Handler: listSavedHandler},
		{MethodName: "TopTrending", Handler: topTrendingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "moviedex/v1/collection",
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionServer).GetStatus(ctx, req.(*GetStatusRequest))
	})
}

func listSavedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSavedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionServer).ListSaved(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListSaved"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionServer).ListSaved(ctx, req.(*ListSavedRequest))
	})
}

func topTrendingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TopTrendingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionServer).TopTrending(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/TopTrending"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionServer).TopTrending(ctx, req.(*TopTrendingRequest))
	})
}

// Client calls the Collection service over a connection dialed with any codec;
// each call forces JSONCodec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*models.SavedStatus, error) {
	out := new(models.SavedStatus)
	if err := c.invoke(ctx, "GetStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSaved(ctx context.Context, in *ListSavedRequest, opts ...grpc.CallOption) (*ListSavedResponse, error) {
	out := new(ListSavedResponse)
	if err := c.invoke(ctx, "ListSaved", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopTrending(ctx context.Context, in *TopTrendingRequest, opts ...grpc.CallOption) (*TopTrendingResponse, error) {
	out := new(TopTrendingResponse)
	if err := c.invoke(ctx, "TopTrending", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(JSONCodec{})}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
