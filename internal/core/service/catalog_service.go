package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

// ProductInput is a full product definition. Prices are rounded to cents.
type ProductInput struct {
	Name     string `validate:"required,max=255"`
	Flavor   string `validate:"required,max=255"`
	Coating  string `validate:"max=255"`
	Stock    int    `validate:"gte=0"`
	Brand    string `validate:"required,max=255"`
	Category string `validate:"required,max=255"`
	Price    decimal.Decimal
}

// ProductPatch changes only the fields that are set.
type ProductPatch struct {
	Name     *string
	Flavor   *string
	Coating  *string
	Stock    *int
	Brand    *string
	Category *string
	Price    *decimal.Decimal
}

func (p ProductPatch) Apply(in *ProductInput) {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Flavor != nil {
		in.Flavor = *p.Flavor
	}
	if p.Coating != nil {
		in.Coating = *p.Coating
	}
	if p.Stock != nil {
		in.Stock = *p.Stock
	}
	if p.Brand != nil {
		in.Brand = *p.Brand
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Price != nil {
		in.Price = *p.Price
	}
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Flavor = strings.TrimSpace(in.Flavor)
	in.Coating = strings.TrimSpace(in.Coating)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Category = strings.TrimSpace(in.Category)

	if err := validateStruct(in); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return domain.NewValidationError("price", "must be greater than or equal to 0")
	}
	in.Price = in.Price.Round(2)
	return nil
}

// CatalogService manages the flavor catalog. Callers are expected to have
// checked domain.CapManageCatalog before any mutation.
type CatalogService struct {
	tx      port.Transactor
	catalog port.CatalogRepository
	now     func() time.Time
	newID   func() string
}

func NewCatalogService(tx port.Transactor, catalog port.CatalogRepository) *CatalogService {
	return &CatalogService{tx: tx, catalog: catalog, now: time.Now, newID: uuid.NewString}
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	p := domain.Product{
		ID:        s.newID(),
		Name:      in.Name,
		Flavor:    in.Flavor,
		Coating:   in.Coating,
		Stock:     in.Stock,
		Brand:     in.Brand,
		Category:  in.Category,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("product created", "product_id", p.ID, "name", p.Name)
	return &p, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	var updated domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return err
		}

		in := ProductInput{
			Name:     cur.Name,
			Flavor:   cur.Flavor,
			Coating:  cur.Coating,
			Stock:    cur.Stock,
			Brand:    cur.Brand,
			Category: cur.Category,
			Price:    cur.Price,
		}
		patch.Apply(&in)
		if err := in.normalize(); err != nil {
			return err
		}

		updated = *cur
		updated.Name = in.Name
		updated.Flavor = in.Flavor
		updated.Coating = in.Coating
		updated.Stock = in.Stock
		updated.Brand = in.Brand
		updated.Category = in.Category
		updated.Price = in.Price
		updated.UpdatedAt = s.now()
		return s.catalog.UpdateProduct(ctx, updated)
	})
	if err != nil {
		return nil, storeError(err)
	}

	obs.Logger.Info("product updated", "product_id", id)
	return &updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return storeError(err)
	}
	obs.Logger.Info("product deleted", "product_id", id)
	return nil
}

// Reprice sets every product to the same price and reports how many changed.
func (s *CatalogService) Reprice(ctx context.Context, price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, domain.NewValidationError("price", "must be greater than or equal to 0")
	}
	n, err := s.catalog.SetAllPrices(ctx, price.Round(2))
	if err != nil {
		return 0, storeError(err)
	}
	obs.Logger.Info("catalog repriced", "price", price.StringFixed(2), "changed", n)
	return n, nil
}
