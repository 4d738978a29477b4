package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
// Only pending orders move, and only to a terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderStatusPending && (next == OrderStatusCompleted || next == OrderStatusCancelled)
}

// LineItem is a product reference and quantity. UnitPrice is the catalog
// price captured when the order was created. ProductName and Flavor are
// filled on reads for display only.
type LineItem struct {
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	ProductName string
	Flavor      string
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type AccountSummary struct {
	ID    string
	Name  string
	Email string
}

type Order struct {
	ID        string
	AccountID string
	Items     []LineItem
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	// Customer is only populated for unscoped (admin) listings.
	Customer *AccountSummary
}

// OrderFilter selects ledger rows. An empty AccountID means every account.
type OrderFilter struct {
	AccountID string
}

// OrderScope is what a caller asks ListOrders for.
type OrderScope struct {
	All bool
}

// SaleLine is a signed unit delta for one product.
type SaleLine struct {
	ProductID string
	Quantity  int
}

// SaleEvent is emitted after an order commits (positive quantities) or is
// cancelled (negative quantities). ID is unique per order transition.
type SaleEvent struct {
	ID      string
	OrderID string
	Lines   []SaleLine
}

func NewSaleEvent(o Order, sign int) SaleEvent {
	kind := "placed"
	if sign < 0 {
		kind = "cancelled"
	}
	ev := SaleEvent{ID: o.ID + ":" + kind, OrderID: o.ID, Lines: make([]SaleLine, 0, len(o.Items))}
	for _, it := range o.Items {
		ev.Lines = append(ev.Lines, SaleLine{ProductID: it.ProductID, Quantity: sign * it.Quantity})
	}
	return ev
}
