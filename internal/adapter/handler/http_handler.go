package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/core/service"
	"github.com/rl1809/heladeria/internal/obs"
)

const (
	maxBodyBytes         = 1 << 20
	idempotencyKeyHeader = "Idempotency-Key"
)

type HTTPHandler struct {
	orders   *service.OrderService
	catalog  *service.CatalogService
	accounts *service.AccountService
	reports  *service.ReportService
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string     `json:"message"`
	Account AccountDTO `json:"account"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Role      string     `json:"role"`
	Account   AccountDTO `json:"account"`
}

type CreateOrderRequest struct {
	Items          []LineItemDTO `json:"items"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

func NewHTTPHandler(orders *service.OrderService, catalog *service.CatalogService,
	accounts *service.AccountService, reports *service.ReportService) *HTTPHandler {
	return &HTTPHandler{orders: orders, catalog: catalog, accounts: accounts, reports: reports}
}

// Routes builds the HTTP API. allowedOrigins feeds the CORS policy for the
// dashboard.
func (h *HTTPHandler) Routes(allowedOrigins ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", idempotencyKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Route("/products", func(r chi.Router) {
			// top-selling is registered before {id} so it is not taken for an id
			r.Get("/top-selling", h.TopSelling)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, requireCapability(domain.CapManageCatalog))
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/", h.CreateOrder)
			r.Get("/my-orders", h.MyOrders)
			r.Get("/", h.AllOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/cancel", h.CancelOrder)
			r.Patch("/{id}/complete", h.CompleteOrder)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acc, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{Message: "account registered", Account: toAccountDTO(*acc)})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Role:      session.Account.Role.String(),
		Account:   toAccountDTO(session.Account),
	})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price == nil {
		writeError(w, r, domain.NewValidationError("price", "is required"))
		return
	}

	in := service.ProductInput{Price: *req.Price}
	service.ProductPatch(req).Apply(&in)

	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*p))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), service.ProductPatch(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "product deleted"})
}

func (h *HTTPHandler) TopSelling(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	rows, err := h.reports.TopSelling(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesDTOs(rows))
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	order, err := h.orders.CreateOrder(r.Context(), principalFrom(r.Context()), toCart(req.Items), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(*order))
}

func (h *HTTPHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, domain.OrderScope{})
}

func (h *HTTPHandler) AllOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, domain.OrderScope{All: true})
}

func (h *HTTPHandler) listOrders(w http.ResponseWriter, r *http.Request, scope domain.OrderScope) {
	orders, err := h.orders.ListOrders(r.Context(), principalFrom(r.Context()), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*order))
}

func (h *HTTPHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CompleteOrder(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*order))
}

// decodeJSON reads the request body into v, writing a 400 and returning
// false when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "invalid request body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	k := classify(err)
	resp := ErrorResponse{Error: k.code, Message: publicMessage(k, err)}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}

	if k.status >= http.StatusInternalServerError {
		obs.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, k.status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
