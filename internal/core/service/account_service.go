package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/heladeria/internal/auth"
	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

type RegisterInput struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=72"`
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   domain.Account
}

type AccountService struct {
	accounts port.AccountRepository
	tokens   port.TokenIssuer
	now      func() time.Time
	newID    func() string
}

func NewAccountService(accounts port.AccountRepository, tokens port.TokenIssuer) *AccountService {
	return &AccountService{accounts: accounts, tokens: tokens, now: time.Now, newID: uuid.NewString}
}

// Register creates a customer account. Emails are unique, case-insensitively.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	return s.create(ctx, in, domain.RoleCustomer)
}

// CreateAdmin creates an account with the admin role.
func (s *AccountService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	return s.create(ctx, in, domain.RoleAdmin)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, role domain.Role) (*domain.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	// bcrypt reads at most 72 bytes; the tag above counts runes
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, domain.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	a := domain.Account{
		ID:           s.newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.accounts.CreateAccount(ctx, a); err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("account registered", "account_id", a.ID, "role", role.String())
	return &a, nil
}

// VerifyCredential returns the account for a matching email and password.
// Unknown emails and wrong passwords both fail with
// domain.ErrInvalidCredentials.
func (s *AccountService) VerifyCredential(ctx context.Context, email, password string) (*domain.Account, error) {
	a, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err)
	}

	ok, err := auth.CheckPassword(a.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s: %w", domain.ErrInvalidCredentials, a.ID, err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return a, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	a, err := s.VerifyCredential(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, exp, err := s.tokens.Issue(domain.Principal{AccountID: a.ID, Role: a.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Account: *a}, nil
}

// Authenticate resolves a bearer token to the principal it was issued for.
func (s *AccountService) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return s.tokens.Verify(token)
}

func (s *AccountService) FindAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
