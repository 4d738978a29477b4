package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/heladeria/internal/core/domain"
)

func (m *MySQLAdapter) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role.String(), a.CreatedAt,
	)
	if isDuplicateEntry(err) {
		return fmt.Errorf("email %s: %w", a.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return m.getAccount(ctx, "id", id)
}

func (m *MySQLAdapter) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return m.getAccount(ctx, "email", email)
}

func (m *MySQLAdapter) getAccount(ctx context.Context, column, value string) (*domain.Account, error) {
	var a domain.Account
	var role string
	err := m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM accounts WHERE `+column+` = ?`, value,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("account", value)
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}

	if a.Role, err = domain.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	return &a, nil
}
