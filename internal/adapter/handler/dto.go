package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
)

// Money is rendered as a fixed two-decimal string.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type ProductDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Flavor    string    `json:"flavor"`
	Coating   string    `json:"coating,omitempty"`
	Stock     int       `json:"stock"`
	Brand     string    `json:"brand"`
	Category  string    `json:"category"`
	Price     string    `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:        p.ID,
		Name:      p.Name,
		Flavor:    p.Flavor,
		Coating:   p.Coating,
		Stock:     p.Stock,
		Brand:     p.Brand,
		Category:  p.Category,
		Price:     money(p.Price),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ProductRequest is the body of create and update calls. Absent fields are
// left unchanged on update.
type ProductRequest struct {
	Name     *string          `json:"name"`
	Flavor   *string          `json:"flavor"`
	Coating  *string          `json:"coating"`
	Stock    *int             `json:"stock"`
	Brand    *string          `json:"brand"`
	Category *string          `json:"category"`
	Price    *decimal.Decimal `json:"price"`
}

type LineItemDTO struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
	Flavor      string `json:"flavor,omitempty"`
	UnitPrice   string `json:"unit_price,omitempty"`
	Subtotal    string `json:"subtotal,omitempty"`
}

type CustomerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OrderDTO struct {
	ID        string        `json:"id"`
	AccountID string        `json:"account_id"`
	Items     []LineItemDTO `json:"items"`
	Total     string        `json:"total"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Customer  *CustomerDTO  `json:"customer,omitempty"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemDTO{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			ProductName: it.ProductName,
			Flavor:      it.Flavor,
			UnitPrice:   money(it.UnitPrice),
			Subtotal:    money(it.Subtotal()),
		})
	}

	dto := OrderDTO{
		ID:        o.ID,
		AccountID: o.AccountID,
		Items:     items,
		Total:     money(o.Total),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Customer != nil {
		dto.Customer = &CustomerDTO{ID: o.Customer.ID, Name: o.Customer.Name, Email: o.Customer.Email}
	}
	return dto
}

func toOrderDTOs(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out
}

// toCart builds the cart from request lines; repeated products merge.
func toCart(items []LineItemDTO) domain.Cart {
	cart := domain.NewCart()
	for _, it := range items {
		cart.Add(it.ProductID, it.Quantity)
	}
	return cart
}

type ProductSalesDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Flavor    string `json:"flavor"`
	TotalSold int    `json:"total_sold"`
}

func toSalesDTOs(rows []domain.ProductSales) []ProductSalesDTO {
	out := make([]ProductSalesDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProductSalesDTO{ProductID: r.ProductID, Name: r.Name, Flavor: r.Flavor, TotalSold: r.TotalSold})
	}
	return out
}

type AccountDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toAccountDTO(a domain.Account) AccountDTO {
	return AccountDTO{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role.String()}
}
