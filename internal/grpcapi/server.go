package grpcapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/order"
)

// Server adapts order.Service to OrderServer.
type Server struct {
	orders *order.Service
}

func NewServer(orders *order.Service) *Server { return &Server{orders: orders} }

// NewGRPCServer builds a grpc.Server with auth, logging and error mapping
// interceptors and the order service registered.
func NewGRPCServer(orders *order.Service, ident *identity.Service, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor, errorInterceptor, authInterceptor(ident)))
	s := grpc.NewServer(opts...)
	RegisterOrderServer(s, NewServer(orders))
	return s
}

func (s *Server) CreateOrder(ctx context.Context, in *order.CreateOrderInput) (*order.Order, error) {
	return s.orders.CreateOrder(ctx, policyFrom(ctx), *in)
}

func (s *Server) Checkout(ctx context.Context, in *CheckoutRequest) (*order.Order, error) {
	return s.orders.Checkout(ctx, policyFrom(ctx), in.Notes)
}

func (s *Server) GetOrder(ctx context.Context, in *GetOrderRequest) (*order.Order, error) {
	return s.orders.GetOrder(ctx, policyFrom(ctx), in.ID)
}

func (s *Server) UpdateStatus(ctx context.Context, in *UpdateStatusRequest) (*order.Order, error) {
	return s.orders.UpdateStatus(ctx, policyFrom(ctx), in.ID, in.Status)
}

func (s *Server) ListOrders(ctx context.Context, in *ListOrdersRequest) (*ListOrdersResponse, error) {
	list, err := s.orders.ListOrders(ctx, policyFrom(ctx), order.ListFilter{
		CustomerID: in.CustomerID, Status: in.Status, Limit: in.Limit, Offset: in.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &ListOrdersResponse{Orders: list}, nil
}

type policyKey struct{}

func policyFrom(ctx context.Context) identity.Policy {
	pol, _ := ctx.Value(policyKey{}).(identity.Policy)
	return pol
}

const authHeader = "authorization"

// authInterceptor resolves the bearer token in the authorization metadata. Calls
// without one run anonymously and are refused by the service itself.
func authInterceptor(ident *identity.Service) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		pol := identity.Policy{}
		if token := tokenFrom(ctx); token != "" {
			p, err := ident.Resolve(ctx, token)
			if err != nil {
				return nil, err
			}
			pol = identity.PolicyFor(p)
		}
		return handler(context.WithValue(ctx, policyKey{}, pol), req)
	}
}

func tokenFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(authHeader) {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	return ""
}

func errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	lvl := zerolog.InfoLevel
	if code == codes.Internal || code == codes.Unknown {
		lvl = zerolog.ErrorLevel
	}
	log.WithLevel(lvl).
		Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("latency", time.Since(start)).
		Msg("grpc call")
	return resp, err
}

// CodeFor maps an error kind to its gRPC status code.
func CodeFor(k apperr.Kind) codes.Code {
	switch k {
	case apperr.KindUnauthorized:
		return codes.Unauthenticated
	case apperr.KindForbidden:
		return codes.PermissionDenied
	case apperr.KindInvalidReference, apperr.KindNotFound:
		return codes.NotFound
	case apperr.KindInsufficientStock, apperr.KindCreditLimitExceeded:
		return codes.FailedPrecondition
	case apperr.KindPriceMismatch, apperr.KindValidation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, identity.ErrUnauthenticated) {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	code := CodeFor(apperr.KindOf(err))
	if code == codes.Internal {
		log.Error().Err(err).Msg("grpc: internal error")
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
