package port

import (
	"time"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type TokenIssuer interface {
	Issue(p domain.Principal) (token string, expiresAt time.Time, err error)

	// Verify fails with domain.ErrUnauthenticated for bad or expired tokens
	Verify(token string) (domain.Principal, error)
}
