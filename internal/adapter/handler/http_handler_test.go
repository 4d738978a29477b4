package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/heladeria/internal/adapter/storage"
	"github.com/rl1809/heladeria/internal/auth"
	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/core/service"
)

const testOrigin = "http://localhost:3001"

// keyGuard is an in-memory idempotency guard.
type keyGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *keyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *keyGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

type apiFixture struct {
	store    *storage.MemoryAdapter
	orders   *service.OrderService
	reports  *service.ReportService
	accounts *service.AccountService
	router   http.Handler
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := storage.NewMemoryAdapter()
	orders := service.NewOrderService(store, store, store, &keyGuard{keys: make(map[string]bool)}, 0)
	t.Cleanup(orders.Close)

	catalog := service.NewCatalogService(store, store)
	accounts := service.NewAccountService(store, auth.NewTokenIssuer("test-secret", time.Hour))
	reports := service.NewReportService(store, store, nil)

	h := NewHTTPHandler(orders, catalog, accounts, reports)
	return &apiFixture{
		store:    store,
		orders:   orders,
		reports:  reports,
		accounts: accounts,
		router:   h.Routes(testOrigin),
	}
}

// login creates an account with the given role and returns its token and id.
func (f *apiFixture) login(t *testing.T, name string, role domain.Role) (string, string) {
	t.Helper()
	ctx := context.Background()
	in := service.RegisterInput{Name: name, Email: name + "@example.com", Password: "secret123"}

	var err error
	if role == domain.RoleAdmin {
		_, err = f.accounts.CreateAdmin(ctx, in)
	} else {
		_, err = f.accounts.Register(ctx, in)
	}
	require.NoError(t, err)

	session, err := f.accounts.Login(ctx, in.Email, in.Password)
	require.NoError(t, err)
	return session.Token, session.Account.ID
}

func (f *apiFixture) product(t *testing.T, name string, stock int, price string) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:       uuid.NewString(),
		Name:     name,
		Flavor:   name,
		Stock:    stock,
		Brand:    "Frigor",
		Category: "paleta",
		Price:    decimal.RequireFromString(price),
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func orderBody(lines ...LineItemDTO) CreateOrderRequest {
	return CreateOrderRequest{Items: lines}
}

func TestHealthCheck(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPI(t)
	reg := RegisterRequest{Name: "Ana", Email: "Ana@Example.com", Password: "secret123"}

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[RegisterResponse](t, rec)
	assert.Equal(t, "ana@example.com", created.Account.Email)
	assert.Equal(t, "customer", created.Account.Role)

	rec = f.do(t, http.MethodPost, "/api/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody[ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeBody[ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "customer", login.Role)
	assert.Equal(t, created.Account.ID, login.Account.ID)
}

func TestRegister_ReportsFieldErrors(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: "Ana", Email: "not-an-email", Password: "secret123"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_input", resp.Error)
	assert.Contains(t, resp.Fields, "email")

	rec = f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("ñ", 40)})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, "password")
}

func TestMalformedBody(t *testing.T) {
	f := newAPI(t)
	token, _ := f.login(t, "ana", domain.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody[ErrorResponse](t, rec).Error)
}

func TestOrders_RequireToken(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/orders/my-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/my-orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeBody[ErrorResponse](t, rec).Error)
}

func TestCreateOrder_PricesAndStock(t *testing.T) {
	f := newAPI(t)
	token, accountID := f.login(t, "ana", domain.RoleCustomer)
	p := f.product(t, "dulce de leche", 3, "2.50")

	rec := f.do(t, http.MethodPost, "/api/orders", token, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 2}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[OrderDTO](t, rec)
	assert.Equal(t, accountID, order.AccountID)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "5.00", order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "2.50", order.Items[0].UnitPrice)
	assert.Equal(t, "5.00", order.Items[0].Subtotal)

	rec = f.do(t, http.MethodPost, "/api/orders", token, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 2}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_stock", decodeBody[ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodGet, "/api/products/"+p.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ProductDTO](t, rec).Stock)
}

func TestCreateOrder_InvalidCart(t *testing.T) {
	f := newAPI(t)
	token, _ := f.login(t, "ana", domain.RoleCustomer)
	p := f.product(t, "frutilla", 3, "1.00")

	tests := []struct {
		name string
		body CreateOrderRequest
	}{
		{"empty", orderBody()},
		{"zero quantity", orderBody(LineItemDTO{ProductID: p.ID, Quantity: 0})},
		{"bad id", orderBody(LineItemDTO{ProductID: "abc", Quantity: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/orders", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Equal(t, 3, mustStock(t, f, p.ID))
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	f := newAPI(t)
	token, _ := f.login(t, "ana", domain.RoleCustomer)
	p := f.product(t, "limon", 10, "1.00")
	body := orderBody(LineItemDTO{ProductID: p.ID, Quantity: 1})

	rec := f.do(t, http.MethodPost, "/api/orders", token, body, idempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders", token, body, idempotencyKeyHeader, "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_request", decodeBody[ErrorResponse](t, rec).Error)
	assert.Equal(t, 9, mustStock(t, f, p.ID))
}

func TestCancelOrder_OwnerOrAdmin(t *testing.T) {
	f := newAPI(t)
	ana, _ := f.login(t, "ana", domain.RoleCustomer)
	ben, _ := f.login(t, "ben", domain.RoleCustomer)
	root, _ := f.login(t, "root", domain.RoleAdmin)
	p := f.product(t, "menta", 5, "3.00")

	place := func(token string) OrderDTO {
		rec := f.do(t, http.MethodPost, "/api/orders", token, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 2}))
		require.Equal(t, http.StatusCreated, rec.Code)
		return decodeBody[OrderDTO](t, rec)
	}

	first := place(ana)
	rec := f.do(t, http.MethodPatch, "/api/orders/"+first.ID+"/cancel", ben, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 3, mustStock(t, f, p.ID))

	rec = f.do(t, http.MethodPatch, "/api/orders/"+first.ID+"/cancel", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decodeBody[OrderDTO](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, first.Total, cancelled.Total)
	assert.Equal(t, 5, mustStock(t, f, p.ID))

	rec = f.do(t, http.MethodPatch, "/api/orders/"+first.ID+"/cancel", ana, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody[ErrorResponse](t, rec).Error)

	second := place(ben)
	rec = f.do(t, http.MethodPatch, "/api/orders/"+second.ID+"/cancel", root, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+uuid.NewString()+"/cancel", root, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteOrder_AdminOnly(t *testing.T) {
	f := newAPI(t)
	ana, _ := f.login(t, "ana", domain.RoleCustomer)
	root, _ := f.login(t, "root", domain.RoleAdmin)
	p := f.product(t, "sambayon", 5, "3.00")

	rec := f.do(t, http.MethodPost, "/api/orders", ana, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeBody[OrderDTO](t, rec)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/complete", ana, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/complete", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[OrderDTO](t, rec).Status)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+order.ID+"/cancel", ana, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 4, mustStock(t, f, p.ID))
}

func TestListOrders_Scope(t *testing.T) {
	f := newAPI(t)
	ana, anaID := f.login(t, "ana", domain.RoleCustomer)
	ben, _ := f.login(t, "ben", domain.RoleCustomer)
	root, _ := f.login(t, "root", domain.RoleAdmin)
	p := f.product(t, "vainilla", 10, "1.25")

	for _, token := range []string{ana, ben} {
		rec := f.do(t, http.MethodPost, "/api/orders", token, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 1}))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/orders/my-orders", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[[]OrderDTO](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, anaID, mine[0].AccountID)
	assert.Equal(t, "vainilla", mine[0].Items[0].ProductName)

	rec = f.do(t, http.MethodGet, "/api/orders", ana, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]OrderDTO](t, rec)
	require.Len(t, all, 2)
	for _, o := range all {
		assert.NotNil(t, o.Customer)
	}
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newAPI(t)
	ana, _ := f.login(t, "ana", domain.RoleCustomer)
	ben, _ := f.login(t, "ben", domain.RoleCustomer)
	root, _ := f.login(t, "root", domain.RoleAdmin)
	p := f.product(t, "granizado", 10, "1.00")

	rec := f.do(t, http.MethodPost, "/api/orders", ana, orderBody(LineItemDTO{ProductID: p.ID, Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeBody[OrderDTO](t, rec)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/orders/"+order.ID, ana, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/orders/"+order.ID, root, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/orders/"+order.ID, ben, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), ana, nil).Code)
}

func TestProducts_AdminCRUD(t *testing.T) {
	f := newAPI(t)
	ana, _ := f.login(t, "ana", domain.RoleCustomer)
	root, _ := f.login(t, "root", domain.RoleAdmin)

	name, flavor, brand, category := "Bombón", "chocolate", "Frigor", "bombon"
	price := decimal.RequireFromString("3.5")
	body := ProductRequest{Name: &name, Flavor: &flavor, Brand: &brand, Category: &category, Price: &price}

	rec := f.do(t, http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/products", ana, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	noPrice := body
	noPrice.Price = nil
	rec = f.do(t, http.MethodPost, "/api/products", root, noPrice)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, "price")

	rec = f.do(t, http.MethodPost, "/api/products", root, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ProductDTO](t, rec)
	assert.Equal(t, "3.50", created.Price)
	assert.Equal(t, 0, created.Stock)

	stock := 12
	rec = f.do(t, http.MethodPut, "/api/products/"+created.ID, root, ProductRequest{Stock: &stock})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[ProductDTO](t, rec)
	assert.Equal(t, 12, updated.Stock)
	assert.Equal(t, "Bombón", updated.Name)

	negative := -1
	rec = f.do(t, http.MethodPut, "/api/products/"+created.ID, root, ProductRequest{Stock: &negative})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ProductDTO](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/products/"+created.ID, root, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/products/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopSelling_Endpoint(t *testing.T) {
	f := newAPI(t)
	ana, _ := f.login(t, "ana", domain.RoleCustomer)
	a := f.product(t, "americana", 50, "1.00")
	b := f.product(t, "banana split", 50, "1.00")

	for _, l := range []LineItemDTO{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 5}} {
		rec := f.do(t, http.MethodPost, "/api/orders", ana, orderBody(l))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/products/top-selling", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decodeBody[[]ProductSalesDTO](t, rec)
	require.Len(t, top, 2)
	assert.Equal(t, b.ID, top[0].ProductID)
	assert.Equal(t, 5, top[0].TotalSold)
	assert.Equal(t, "americana", top[1].Name)

	rec = f.do(t, http.MethodGet, "/api/products/top-selling?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ProductSalesDTO](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/products/top-selling?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest},
		{&domain.StockError{ProductID: "p", Requested: 2, Available: 1}, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidState, http.StatusConflict},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, classify(tt.err).status, tt.err.Error())
	}

	k := classify(domain.ErrStoreUnavailable)
	assert.Equal(t, "service temporarily unavailable", publicMessage(k, domain.ErrStoreUnavailable))
}

func mustStock(t *testing.T, f *apiFixture, id string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}
