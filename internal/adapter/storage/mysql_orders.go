package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/heladeria/internal/core/domain"
)

func (m *MySQLAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	q := m.conn(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, account_id, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.AccountID, order.Total, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range order.Items {
		_, err = q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, i, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, account_id, total, status, created_at, updated_at
		FROM orders WHERE id = ?`+forUpdate(ctx), id,
	).Scan(&o.ID, &o.AccountID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.queryItems(ctx, `WHERE i.order_id = ?`, id)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, at, id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		ok, err := m.exists(ctx, "orders", id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("order", id)
		}
		return fmt.Errorf("order %s is not %s: %w", id, from, domain.ErrInvalidState)
	}
	return nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT o.id, o.account_id, o.total, o.status, o.created_at, o.updated_at,
		       COALESCE(a.name, ''), COALESCE(a.email, '')
		FROM orders o
		LEFT JOIN accounts a ON a.id = o.account_id
		WHERE ? = '' OR o.account_id = ?
		ORDER BY o.created_at DESC, o.id DESC`,
		filter.AccountID, filter.AccountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		var name, email string
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt, &name, &email); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if filter.AccountID == "" {
			o.Customer = &domain.AccountSummary{ID: o.AccountID, Name: name, Email: email}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	items, err := m.queryItems(ctx, `JOIN orders o ON o.id = i.order_id WHERE ? = '' OR o.account_id = ?`,
		filter.AccountID, filter.AccountID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// queryItems loads line items with their product details, grouped by order id.
func (m *MySQLAdapter) queryItems(ctx context.Context, where string, args ...any) (map[string][]domain.LineItem, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT i.order_id, i.product_id, i.quantity, i.unit_price,
		       COALESCE(p.name, ''), COALESCE(p.flavor, '')
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		`+where+`
		ORDER BY i.order_id, i.line_no`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.LineItem)
	for rows.Next() {
		var orderID string
		var it domain.LineItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.ProductName, &it.Flavor); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	query := `
		SELECT p.id, p.name, p.flavor, SUM(i.quantity) AS total_sold
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		JOIN products p ON p.id = i.product_id
		WHERE o.status <> ?
		GROUP BY p.id, p.name, p.flavor
		ORDER BY total_sold DESC, p.id`
	args := []any{domain.OrderStatusCancelled}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := m.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top selling: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProductSales, 0)
	for rows.Next() {
		var s domain.ProductSales
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Flavor, &s.TotalSold); err != nil {
			return nil, fmt.Errorf("scan top selling: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
