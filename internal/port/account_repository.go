package port

import (
	"context"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type AccountRepository interface {
	// CreateAccount fails with domain.ErrConflict when the email is taken.
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
}
