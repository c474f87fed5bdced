package rpc

import (
	"context"
	"fmt"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the order entry service. It satisfies agent.Client.
type Client struct {
	conn *grpc.ClientConn
	opts []grpc.CallOption
}

// Dial connects to target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial order entry %s: %w", target, err)
	}
	return NewClient(conn), nil
}

func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{
		conn: conn,
		opts: []grpc.CallOption{grpc.CallContentSubtype(codecName)},
	}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if err := c.conn.Invoke(ctx, method, in, out, c.opts...); err != nil {
		return fromStatus(err)
	}
	return nil
}

// PlaceOrder submits cmd and waits for its match result.
func (c *Client) PlaceOrder(ctx context.Context, cmd *match.PlaceOrderCommand) (*protocol.PlaceOrderReply, error) {
	if cmd == nil {
		return nil, match.ErrInvalidParam
	}
	out := new(protocol.PlaceOrderReply)
	if err := c.invoke(ctx, methodPlaceOrder, match.PlaceOrderToProtocol(cmd), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, cmd *match.PlaceOrderCommand) error {
	_, err := c.PlaceOrder(ctx, cmd)
	return err
}

func (c *Client) CancelOrder(ctx context.Context, orderID uint64) (*match.Order, error) {
	out := new(protocol.OrderMessage)
	if err := c.invoke(ctx, methodCancelOrder, &protocol.CancelOrderCommand{OrderID: orderID}, out); err != nil {
		return nil, err
	}
	return match.OrderFromProtocol(out)
}

func (c *Client) Depth(ctx context.Context, limit uint32) (*protocol.GetDepthResponse, error) {
	out := new(protocol.GetDepthResponse)
	if err := c.invoke(ctx, methodGetDepth, &protocol.GetDepthRequest{Limit: limit}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*protocol.GetStatsResponse, error) {
	out := new(protocol.GetStatsResponse)
	if err := c.invoke(ctx, methodGetStats, &protocol.GetStatsRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error) {
	out := new(protocol.MarketSnapshotMessage)
	if err := c.invoke(ctx, methodGetMarketSnapshot, &protocol.GetSnapshotRequest{}, out); err != nil {
		return nil, err
	}
	return match.MarketSnapshotFromProtocol(out)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
