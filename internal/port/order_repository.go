package port

import (
	"context"
	"time"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type OrderRepository interface {
	InsertOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns domain.ErrNotFound for unknown ids. Inside a unit of
	// work the order row stays locked until the unit ends.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateOrderStatus moves the order from one status to another and fails
	// with domain.ErrInvalidState when the order is no longer in from.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error

	// ListOrders returns matching orders newest first, with product details
	// on every line item.
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// TopSelling sums line item quantities of non-cancelled orders per
	// existing product, highest first. limit <= 0 returns every product.
	TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error)
}
