package rpc

import (
	"context"

	"github.com/0x5487/marketsim/protocol"
	"google.golang.org/grpc"
)

const (
	serviceName = "marketsim.v1.OrderEntry"

	methodPlaceOrder        = "/" + serviceName + "/PlaceOrder"
	methodCancelOrder       = "/" + serviceName + "/CancelOrder"
	methodGetDepth          = "/" + serviceName + "/GetDepth"
	methodGetStats          = "/" + serviceName + "/GetStats"
	methodGetMarketSnapshot = "/" + serviceName + "/GetMarketSnapshot"
)

// OrderEntryServer is the server API for the order entry service.
type OrderEntryServer interface {
	PlaceOrder(context.Context, *protocol.PlaceOrderCommand) (*protocol.PlaceOrderReply, error)
	CancelOrder(context.Context, *protocol.CancelOrderCommand) (*protocol.OrderMessage, error)
	GetDepth(context.Context, *protocol.GetDepthRequest) (*protocol.GetDepthResponse, error)
	GetStats(context.Context, *protocol.GetStatsRequest) (*protocol.GetStatsResponse, error)
	GetMarketSnapshot(context.Context, *protocol.GetSnapshotRequest) (*protocol.MarketSnapshotMessage, error)
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv OrderEntryServer) {
	s.RegisterService(&OrderEntryServiceDesc, srv)
}

// unary builds a method handler that decodes a Req and dispatches to call.
func unary[Req any](fullMethod string, call func(OrderEntryServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderEntryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderEntryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var OrderEntryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderEntryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PlaceOrder",
			Handler: unary(methodPlaceOrder, func(s OrderEntryServer, ctx context.Context, in *protocol.PlaceOrderCommand) (any, error) {
				return s.PlaceOrder(ctx, in)
			}),
		},
		{
			MethodName: "CancelOrder",
			Handler: unary(methodCancelOrder, func(s OrderEntryServer, ctx context.Context, in *protocol.CancelOrderCommand) (any, error) {
				return s.CancelOrder(ctx, in)
			}),
		},
		{
			MethodName: "GetDepth",
			Handler: unary(methodGetDepth, func(s OrderEntryServer, ctx context.Context, in *protocol.GetDepthRequest) (any, error) {
				return s.GetDepth(ctx, in)
			}),
		},
		{
			MethodName: "GetStats",
			Handler: unary(methodGetStats, func(s OrderEntryServer, ctx context.Context, in *protocol.GetStatsRequest) (any, error) {
				return s.GetStats(ctx, in)
			}),
		},
		{
			MethodName: "GetMarketSnapshot",
			Handler: unary(methodGetMarketSnapshot, func(s OrderEntryServer, ctx context.Context, in *protocol.GetSnapshotRequest) (any, error) {
				return s.GetMarketSnapshot(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketsim/v1/order_entry",
}
