package port

import (
	"context"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type IdempotencyGuard interface {
	// Acquire claims key, returns false if it is already claimed
	Acquire(ctx context.Context, key string) (bool, error)

	// Release frees a key whose request failed so the client may retry
	Release(ctx context.Context, key string) error
}

// SalesBoard is a non-authoritative running tally of units sold per product.
type SalesBoard interface {
	// Apply adds the event's deltas once, returns false if the event was already applied
	Apply(ctx context.Context, event domain.SaleEvent) (bool, error)

	// Top returns up to n products with the highest positive tally
	Top(ctx context.Context, n int) ([]domain.ProductSales, error)

	// Reset replaces the board with the given tallies
	Reset(ctx context.Context, tallies []domain.ProductSales) error
}
