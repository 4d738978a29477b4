package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/heladeria/internal/adapter/storage"
	"github.com/rl1809/heladeria/internal/auth"
	"github.com/rl1809/heladeria/internal/core/domain"
)

func newAccounts() *AccountService {
	return NewAccountService(storage.NewMemoryAdapter(), auth.NewTokenIssuer("test-secret", time.Hour))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAccounts()
	ctx := context.Background()

	acc, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "helado"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, acc.Role)
	assert.Equal(t, "ana@example.com", acc.Email)
	assert.NotEqual(t, "helado", acc.PasswordHash)

	session, err := svc.Login(ctx, "ANA@example.com", "helado")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, session.Account.ID)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	p, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{AccountID: acc.ID, Role: domain.RoleCustomer}, p)

	found, err := svc.FindAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", found.Name)
}

func TestRegister_Rejects(t *testing.T) {
	svc := newAccounts()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "helado"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "Otra", Email: "ANA@example.com", Password: "helado"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana", Email: "not-an-email", Password: "helado"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana", Email: "b@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Email: "c@example.com", Password: "helado"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegister_PasswordLimitCountsBytes(t *testing.T) {
	svc := newAccounts()
	ctx := context.Background()

	// 40 characters, 80 bytes
	_, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("ñ", 40)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "password")

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("ñ", 36)})
	assert.NoError(t, err, "72 bytes is accepted")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newAccounts()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "helado"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "helado")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCreateAdmin(t *testing.T) {
	svc := newAccounts()
	ctx := context.Background()

	acc, err := svc.CreateAdmin(ctx, RegisterInput{Name: "Root", Email: "root@example.com", Password: "supersecret"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, acc.Role)

	session, err := svc.Login(ctx, "root@example.com", "supersecret")
	require.NoError(t, err)
	p, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.True(t, p.Can(domain.CapListAllOrders))
}

func TestAuthenticate_Rejects(t *testing.T) {
	svc := newAccounts()

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
