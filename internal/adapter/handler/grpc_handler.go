package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/core/service"
	"github.com/rl1809/heladeria/internal/obs"
)

const (
	orderServiceName = "heladeria.v1.OrderService"

	methodCreateOrder = "/" + orderServiceName + "/CreateOrder"
	methodCancelOrder = "/" + orderServiceName + "/CancelOrder"
	methodListOrders  = "/" + orderServiceName + "/ListOrders"
	methodTopSelling  = "/" + orderServiceName + "/TopSelling"
)

// Methods callable without a bearer token.
var publicMethods = map[string]bool{
	methodTopSelling: true,
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

type ListOrdersRequest struct {
	All bool `json:"all"`
}

type ListOrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
}

type TopSellingRequest struct {
	Limit int `json:"limit"`
}

type TopSellingResponse struct {
	Products []ProductSalesDTO `json:"products"`
}

type OrderServiceServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDTO, error)
	CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderDTO, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	TopSelling(ctx context.Context, req *TopSellingRequest) (*TopSellingResponse, error)
}

// unaryMethod adapts a typed server method to grpc.MethodHandler.
func unaryMethod[Req, Resp any](fullMethod string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryMethod(methodCreateOrder, OrderServiceServer.CreateOrder)},
		{MethodName: "CancelOrder", Handler: unaryMethod(methodCancelOrder, OrderServiceServer.CancelOrder)},
		{MethodName: "ListOrders", Handler: unaryMethod(methodListOrders, OrderServiceServer.ListOrders)},
		{MethodName: "TopSelling", Handler: unaryMethod(methodTopSelling, OrderServiceServer.TopSelling)},
	},
	Metadata: "heladeria/v1/order_service",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

type GRPCHandler struct {
	orders   *service.OrderService
	reports  *service.ReportService
	accounts *service.AccountService
}

func NewGRPCHandler(orders *service.OrderService, reports *service.ReportService, accounts *service.AccountService) *GRPCHandler {
	return &GRPCHandler{orders: orders, reports: reports, accounts: accounts}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDTO, error) {
	order, err := h.orders.CreateOrder(ctx, principalFrom(ctx), toCart(req.Items), req.IdempotencyKey)
	if err != nil {
		return nil, grpcError(err)
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderDTO, error) {
	order, err := h.orders.CancelOrder(ctx, req.OrderID, principalFrom(ctx))
	if err != nil {
		return nil, grpcError(err)
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, err := h.orders.ListOrders(ctx, principalFrom(ctx), domain.OrderScope{All: req.All})
	if err != nil {
		return nil, grpcError(err)
	}
	return &ListOrdersResponse{Orders: toOrderDTOs(orders)}, nil
}

func (h *GRPCHandler) TopSelling(ctx context.Context, req *TopSellingRequest) (*TopSellingResponse, error) {
	if req.Limit < 0 {
		return nil, grpcError(domain.NewValidationError("limit", "must be a positive integer"))
	}
	rows, err := h.reports.TopSelling(ctx, req.Limit)
	if err != nil {
		return nil, grpcError(err)
	}
	return &TopSellingResponse{Products: toSalesDTOs(rows)}, nil
}

// UnaryAuthInterceptor resolves the bearer token in the "authorization"
// metadata to a principal for every non-public method.
func (h *GRPCHandler) UnaryAuthInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			token = bearerToken(v[0])
		}
	}

	p, err := h.accounts.Authenticate(ctx, token)
	if err != nil {
		return nil, grpcError(err)
	}
	return handler(withPrincipal(ctx, p), req)
}

func UnaryLoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	obs.Logger.Info("grpc request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}

func grpcError(err error) error {
	k := classify(err)
	if k.code == internalError.code || k.code == "store_unavailable" {
		obs.Logger.Error("grpc call failed", "error", err)
	}
	return status.Error(k.grpc, publicMessage(k, err))
}
