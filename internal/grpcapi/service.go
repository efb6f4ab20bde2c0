// Package grpcapi exposes order operations to other services over gRPC.
// Messages are plain Go structs carried by a JSON codec; there are no
// generated stubs, so the service descriptor is written out here.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ahinestrog/bookdist/internal/order"
)

const ServiceName = "bookdist.order.v1.OrderService"

type CheckoutRequest struct {
	Notes string `json:"notes"`
}

type GetOrderRequest struct {
	ID int64 `json:"id"`
}

type UpdateStatusRequest struct {
	ID     int64        `json:"id"`
	Status order.Status `json:"status"`
}

type ListOrdersRequest struct {
	CustomerID int64        `json:"customer_id,omitempty"`
	Status     order.Status `json:"status,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*order.Order `json:"orders"`
}

// OrderServer is implemented by *Server.
type OrderServer interface {
	CreateOrder(context.Context, *order.CreateOrderInput) (*order.Order, error)
	Checkout(context.Context, *CheckoutRequest) (*order.Order, error)
	GetOrder(context.Context, *GetOrderRequest) (*order.Order, error)
	UpdateStatus(context.Context, *UpdateStatusRequest) (*order.Order, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(OrderServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderServer), ctx, req.(*Req))
			}
			if ic == nil {
				return h(ctx, in)
			}
			return ic(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}, h)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrder", OrderServer.CreateOrder),
		unary("Checkout", OrderServer.Checkout),
		unary("GetOrder", OrderServer.GetOrder),
		unary("UpdateStatus", OrderServer.UpdateStatus),
		unary("ListOrders", OrderServer.ListOrders),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookdist/order/v1",
}

func RegisterOrderServer(s grpc.ServiceRegistrar, srv OrderServer) {
	s.RegisterService(&serviceDesc, srv)
}
