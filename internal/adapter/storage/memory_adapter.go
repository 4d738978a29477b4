package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
)

// MemoryAdapter keeps catalog, ledger and accounts in process. One mutex
// guards everything; a unit of work holds it from start to end and keeps an
// undo journal that is replayed when the unit fails.
type MemoryAdapter struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	sequence []string // order ids in insertion order
	accounts map[string]domain.Account
	emails   map[string]string
}

type memTxKey struct{}

type memTx struct {
	owner *MemoryAdapter
	undo  []func()
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		accounts: make(map[string]domain.Account),
		emails:   make(map[string]string),
	}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := m.txFrom(ctx); tx != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{owner: m}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (m *MemoryAdapter) txFrom(ctx context.Context) *memTx {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok || tx.owner != m {
		return nil
	}
	return tx
}

// lock takes the store mutex unless ctx already runs inside a unit of work.
func (m *MemoryAdapter) lock(ctx context.Context) (*memTx, func()) {
	if tx := m.txFrom(ctx); tx != nil {
		return tx, func() {}
	}
	m.mu.Lock()
	return nil, m.mu.Unlock
}

func (tx *memTx) record(undo func()) {
	if tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryAdapter) GetProductsForUpdate(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrConflict)
	}
	m.products[p.ID] = p
	tx.record(func() { delete(m.products, p.ID) })
	return nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	prev, ok := m.products[p.ID]
	if !ok {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrNotFound)
	}
	p.CreatedAt = prev.CreatedAt
	m.products[p.ID] = p
	tx.record(func() { m.products[p.ID] = prev })
	return nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id string) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	prev, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	delete(m.products, id)
	tx.record(func() { m.products[id] = prev })
	return nil
}

func (m *MemoryAdapter) UpdateStock(ctx context.Context, id string, delta int) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if p.Stock+delta < 0 {
		return &domain.StockError{ProductID: id, Name: p.Name, Requested: -delta, Available: p.Stock}
	}
	prev := p
	p.Stock += delta
	p.UpdatedAt = time.Now()
	m.products[id] = p
	tx.record(func() { m.products[id] = prev })
	return nil
}

func (m *MemoryAdapter) SetAllPrices(ctx context.Context, price decimal.Decimal) (int64, error) {
	tx, unlock := m.lock(ctx)
	defer unlock()

	var changed int64
	now := time.Now()
	for id, p := range m.products {
		if p.Price.Equal(price) {
			continue
		}
		prev := p
		p.Price = price
		p.UpdatedAt = now
		m.products[id] = p
		tx.record(func() { m.products[id] = prev })
		changed++
	}
	return changed, nil
}

func (m *MemoryAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrConflict)
	}
	order.Items = cloneItems(order.Items)
	order.Customer = nil
	m.orders[order.ID] = order
	m.sequence = append(m.sequence, order.ID)
	tx.record(func() {
		delete(m.orders, order.ID)
		m.sequence = m.sequence[:len(m.sequence)-1]
	})
	return nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	o = m.decorate(o, false)
	return &o, nil
}

func (m *MemoryAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %s is %s: %w", id, o.Status, domain.ErrInvalidState)
	}
	prev := o
	o.Status = to
	o.UpdatedAt = at
	m.orders[id] = o
	tx.record(func() { m.orders[id] = prev })
	return nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	out := make([]domain.Order, 0)
	for i := len(m.sequence) - 1; i >= 0; i-- {
		o := m.orders[m.sequence[i]]
		if filter.AccountID != "" && o.AccountID != filter.AccountID {
			continue
		}
		out = append(out, m.decorate(o, filter.AccountID == ""))
	}
	return out, nil
}

func (m *MemoryAdapter) TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	totals := make(map[string]int)
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		for _, it := range o.Items {
			totals[it.ProductID] += it.Quantity
		}
	}

	out := make([]domain.ProductSales, 0, len(totals))
	for id, n := range totals {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		out = append(out, domain.ProductSales{ProductID: id, Name: p.Name, Flavor: p.Flavor, TotalSold: n})
	}
	domain.SortSales(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryAdapter) CreateAccount(ctx context.Context, a domain.Account) error {
	tx, unlock := m.lock(ctx)
	defer unlock()

	email := strings.ToLower(a.Email)
	if _, ok := m.emails[email]; ok {
		return fmt.Errorf("email %s: %w", a.Email, domain.ErrConflict)
	}
	m.accounts[a.ID] = a
	m.emails[email] = a.ID
	tx.record(func() {
		delete(m.accounts, a.ID)
		delete(m.emails, email)
	})
	return nil
}

func (m *MemoryAdapter) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryAdapter) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	_, unlock := m.lock(ctx)
	defer unlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	a := m.accounts[id]
	return &a, nil
}

// decorate fills display fields on a copy of o. Callers hold the mutex.
func (m *MemoryAdapter) decorate(o domain.Order, withCustomer bool) domain.Order {
	o.Items = cloneItems(o.Items)
	for i := range o.Items {
		if p, ok := m.products[o.Items[i].ProductID]; ok {
			o.Items[i].ProductName = p.Name
			o.Items[i].Flavor = p.Flavor
		}
	}
	if withCustomer {
		if a, ok := m.accounts[o.AccountID]; ok {
			o.Customer = &domain.AccountSummary{ID: a.ID, Name: a.Name, Email: a.Email}
		}
	}
	return o
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
