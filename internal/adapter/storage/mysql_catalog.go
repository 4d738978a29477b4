package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
)

const productColumns = `id, name, flavor, coating, stock, brand, category, price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (domain.Product, error) {
	var p domain.Product
	err := r.Scan(&p.ID, &p.Name, &p.Flavor, &p.Coating, &p.Stock, &p.Brand, &p.Category,
		&p.Price, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(m.conn(ctx).QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`+forUpdate(ctx), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProductsForUpdate(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	// ORDER BY id gives every transaction the same lock order.
	rows, err := m.conn(ctx).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders+`) ORDER BY id`+forUpdate(ctx),
		args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Flavor, p.Coating, p.Stock, p.Brand, p.Category, p.Price,
		p.CreatedAt, p.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE products
		SET name = ?, flavor = ?, coating = ?, stock = ?, brand = ?, category = ?, price = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Flavor, p.Coating, p.Stock, p.Brand, p.Category, p.Price, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	// MySQL reports zero affected rows when nothing changed, so confirm the row exists.
	if rows, _ := result.RowsAffected(); rows == 0 {
		ok, err := m.exists(ctx, "products", p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("product", p.ID)
		}
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("product", id)
	}
	return nil
}

func (m *MySQLAdapter) UpdateStock(ctx context.Context, id string, delta int) error {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = ?
		WHERE id = ? AND stock + ? >= 0`,
		delta, time.Now(), id, delta,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var name string
	var stock int
	err = m.conn(ctx).QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = ?`, id).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("product", id)
	}
	if err != nil {
		return fmt.Errorf("query stock: %w", err)
	}
	return &domain.StockError{ProductID: id, Name: name, Requested: -delta, Available: stock}
}

func (m *MySQLAdapter) SetAllPrices(ctx context.Context, price decimal.Decimal) (int64, error) {
	result, err := m.conn(ctx).ExecContext(ctx,
		`UPDATE products SET price = ?, updated_at = ? WHERE price <> ?`, price, time.Now(), price)
	if err != nil {
		return 0, fmt.Errorf("reprice products: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
