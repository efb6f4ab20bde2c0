package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ahinestrog/bookdist/internal/order"
)

// Client calls OrderService on a remote bookdist.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects without TLS; extra options are appended after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error { return c.cc.Close() }

// WithToken attaches a bearer token to outgoing calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authHeader, "Bearer "+token)
}

func (c *Client) CreateOrder(ctx context.Context, in *order.CreateOrderInput) (*order.Order, error) {
	out := new(order.Order)
	if err := c.cc.Invoke(ctx, fullMethod("CreateOrder"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Checkout(ctx context.Context, in *CheckoutRequest) (*order.Order, error) {
	out := new(order.Order)
	if err := c.cc.Invoke(ctx, fullMethod("Checkout"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest) (*order.Order, error) {
	out := new(order.Order)
	if err := c.cc.Invoke(ctx, fullMethod("GetOrder"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, in *UpdateStatusRequest) (*order.Order, error) {
	out := new(order.Order)
	if err := c.cc.Invoke(ctx, fullMethod("UpdateStatus"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, fullMethod("ListOrders"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}
