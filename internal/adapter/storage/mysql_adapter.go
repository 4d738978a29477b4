package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/heladeria/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'customer',
		created_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_accounts_email (email)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         CHAR(36)      NOT NULL PRIMARY KEY,
		name       VARCHAR(255)  NOT NULL,
		flavor     VARCHAR(255)  NOT NULL,
		coating    VARCHAR(255)  NOT NULL DEFAULT '',
		stock      INT           NOT NULL,
		brand      VARCHAR(255)  NOT NULL,
		category   VARCHAR(255)  NOT NULL,
		price      DECIMAL(10,2) NOT NULL,
		created_at DATETIME(6)   NOT NULL,
		updated_at DATETIME(6)   NOT NULL,
		CONSTRAINT chk_products_stock CHECK (stock >= 0),
		CONSTRAINT chk_products_price CHECK (price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         CHAR(36)      NOT NULL PRIMARY KEY,
		account_id CHAR(36)      NOT NULL,
		total      DECIMAL(12,2) NOT NULL,
		status     VARCHAR(16)   NOT NULL,
		created_at DATETIME(6)   NOT NULL,
		updated_at DATETIME(6)   NOT NULL,
		KEY idx_orders_account (account_id, created_at),
		CONSTRAINT fk_orders_account FOREIGN KEY (account_id) REFERENCES accounts (id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   CHAR(36)      NOT NULL,
		line_no    INT           NOT NULL,
		product_id CHAR(36)      NOT NULL,
		quantity   INT           NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (order_id, line_no),
		KEY idx_order_items_product (product_id),
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (id),
		CONSTRAINT chk_order_items_quantity CHECK (quantity >= 1)
	)`,
}

type txKey struct{}

// queryer is the part of *sql.DB and *sql.Tx the adapter needs.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) conn(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return m.db
}

// forUpdate locks the selected rows when ctx carries a transaction.
func forUpdate(ctx context.Context) string {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return " FOR UPDATE"
	}
	return ""
}

func (m *MySQLAdapter) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := m.conn(ctx).QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", table, err)
	}
	return true, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}
