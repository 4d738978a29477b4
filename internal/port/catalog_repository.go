package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type CatalogRepository interface {
	// GetProduct returns domain.ErrNotFound for unknown ids.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProductsForUpdate loads the given products keyed by id, locking them
	// in ascending id order for the rest of the unit of work. Unknown ids are
	// absent from the result.
	GetProductsForUpdate(ctx context.Context, ids []string) (map[string]domain.Product, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// UpdateStock adds delta to the product's stock. It fails with
	// domain.ErrOutOfStock when the result would be negative and with
	// domain.ErrNotFound for unknown ids.
	UpdateStock(ctx context.Context, id string, delta int) error

	// SetAllPrices reprices the whole catalog, returning the rows changed.
	SetAllPrices(ctx context.Context, price decimal.Decimal) (int64, error)
}
