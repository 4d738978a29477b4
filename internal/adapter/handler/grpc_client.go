package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// OrderClient calls heladeria.v1.OrderService over a JSON-coded connection.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

// WithToken attaches a bearer token to outgoing calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *OrderClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *OrderClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderDTO, error) {
	out := new(OrderDTO)
	if err := c.invoke(ctx, methodCreateOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*OrderDTO, error) {
	out := new(OrderDTO)
	if err := c.invoke(ctx, methodCancelOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, methodListOrders, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) TopSelling(ctx context.Context, in *TopSellingRequest, opts ...grpc.CallOption) (*TopSellingResponse, error) {
	out := new(TopSellingResponse)
	if err := c.invoke(ctx, methodTopSelling, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
