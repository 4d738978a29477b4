package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

type OrderService struct {
	tx      port.Transactor
	catalog port.CatalogRepository
	orders  port.OrderRepository
	guard   port.IdempotencyGuard // nil disables Idempotency-Key handling

	mu     sync.RWMutex
	events chan domain.SaleEvent // nil when nothing consumes sale events
	closed bool

	now   func() time.Time
	newID func() string
}

// NewOrderService wires the workflow. A queueSize of zero disables the
// sale event queue.
func NewOrderService(tx port.Transactor, catalog port.CatalogRepository, orders port.OrderRepository,
	guard port.IdempotencyGuard, queueSize int) *OrderService {
	s := &OrderService{
		tx:      tx,
		catalog: catalog,
		orders:  orders,
		guard:   guard,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if queueSize > 0 {
		s.events = make(chan domain.SaleEvent, queueSize)
	}
	return s
}

// CreateOrder places an order for the cart at current catalog prices and
// takes the ordered units out of stock, all or nothing.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Principal, cart domain.Cart, idempotencyKey string) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.guard != nil {
		key := fmt.Sprintf("order:%s:%s", actor.AccountID, idempotencyKey)

		ok, err := s.guard.Acquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: idempotency check failed: %w", domain.ErrStoreUnavailable, err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}

		order, err := s.placeOrder(ctx, actor, cart)
		if err != nil {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), key); relErr != nil {
				obs.Logger.Warn("release idempotency key", "key", key, "error", relErr)
			}
			return nil, err
		}
		return order, nil
	}

	return s.placeOrder(ctx, actor, cart)
}

func (s *OrderService) placeOrder(ctx context.Context, actor domain.Principal, cart domain.Cart) (*domain.Order, error) {
	now := s.now()
	order := domain.Order{
		ID:        s.newID(),
		AccountID: actor.AccountID,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lines := cart.Lines()
		requested := make(map[string]int, len(lines))
		for _, l := range lines {
			requested[l.ProductID] += l.Quantity
		}

		products, err := s.catalog.GetProductsForUpdate(ctx, cart.ProductIDs())
		if err != nil {
			return err
		}

		// Every line is checked before anything is written.
		for _, id := range cart.ProductIDs() {
			p, ok := products[id]
			if !ok {
				return &domain.StockError{ProductID: id, Requested: requested[id], Available: -1}
			}
			if p.Stock < requested[id] {
				return &domain.StockError{ProductID: id, Name: p.Name, Requested: requested[id], Available: p.Stock}
			}
		}

		items := make([]domain.LineItem, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			p := products[l.ProductID]
			item := domain.LineItem{
				ProductID:   l.ProductID,
				Quantity:    l.Quantity,
				UnitPrice:   p.Price,
				ProductName: p.Name,
				Flavor:      p.Flavor,
			}
			items = append(items, item)
			total = total.Add(item.Subtotal())
		}
		order.Items = items
		order.Total = total

		if err := s.orders.InsertOrder(ctx, order); err != nil {
			return err
		}

		for _, it := range order.Items {
			if err := s.catalog.UpdateStock(ctx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("order created",
		"order_id", order.ID,
		"account_id", order.AccountID,
		"items", len(order.Items),
		"total", order.Total.StringFixed(2),
	)
	s.publish(domain.NewSaleEvent(order, 1))

	return &order, nil
}

// CancelOrder moves a pending order to cancelled and puts its units back in
// stock. Only the owner or an account allowed to cancel any order may do so.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, actor domain.Principal) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if orderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.Owns(*o) && !actor.Can(domain.CapCancelAnyOrder) {
			return fmt.Errorf("%w: order %s belongs to another account", domain.ErrForbidden, orderID)
		}
		if !o.Status.CanTransition(domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, orderID, o.Status)
		}

		// The conditional transition goes first so that a concurrent cancel
		// fails here and never restocks.
		now := s.now()
		if err := s.orders.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, now); err != nil {
			return err
		}

		// Product rows are locked and restocked in ascending id order, the
		// same order CreateOrder locks them in.
		restock := make(map[string]int, len(o.Items))
		ids := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			if _, ok := restock[it.ProductID]; !ok {
				ids = append(ids, it.ProductID)
			}
			restock[it.ProductID] += it.Quantity
		}
		sort.Strings(ids)

		if _, err := s.catalog.GetProductsForUpdate(ctx, ids); err != nil {
			return err
		}
		for _, id := range ids {
			err := s.catalog.UpdateStock(ctx, id, restock[id])
			if errors.Is(err, domain.ErrNotFound) {
				obs.Logger.Warn("restock skipped, product no longer exists",
					"order_id", o.ID, "product_id", id, "quantity", restock[id])
				continue
			}
			if err != nil {
				return err
			}
		}

		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("order cancelled", "order_id", order.ID, "by", actor.AccountID)
	s.publish(domain.NewSaleEvent(*order, -1))

	return order, nil
}

// CompleteOrder marks a pending order as delivered. Stock is untouched.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID string, actor domain.Principal) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.Can(domain.CapCompleteOrder) {
		return nil, fmt.Errorf("%w: completing orders requires admin", domain.ErrForbidden)
	}
	if orderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(domain.OrderStatusCompleted) {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, orderID, o.Status)
		}

		now := s.now()
		if err := s.orders.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusCompleted, now); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCompleted
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("order completed", "order_id", order.ID, "by", actor.AccountID)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string, actor domain.Principal) (*domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeError(err)
	}
	if !actor.Owns(*o) && !actor.Can(domain.CapListAllOrders) {
		return nil, fmt.Errorf("%w: order %s belongs to another account", domain.ErrForbidden, orderID)
	}
	return o, nil
}

// ListOrders returns the actor's own orders, or every order when scope.All
// is set and the actor may see them.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Principal, scope domain.OrderScope) ([]domain.Order, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	filter := domain.OrderFilter{AccountID: actor.AccountID}
	if scope.All {
		if !actor.Can(domain.CapListAllOrders) {
			return nil, fmt.Errorf("%w: listing all orders requires admin", domain.ErrForbidden)
		}
		filter = domain.OrderFilter{}
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return orders, nil
}

// publish hands the event to the projector without blocking the caller.
func (s *OrderService) publish(ev domain.SaleEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.events == nil || s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		obs.Logger.Warn("sale event queue full, event dropped", "event_id", ev.ID)
	}
}

func (s *OrderService) SaleEvents() <-chan domain.SaleEvent {
	return s.events
}

// Close stops publishing and closes the sale event queue so workers drain
// and exit. It is safe to call more than once.
func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.events != nil {
		close(s.events)
	}
}
