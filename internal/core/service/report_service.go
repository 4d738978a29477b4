package service

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

const DefaultTopLimit = 5

type ReportService struct {
	ledger  port.OrderRepository
	catalog port.CatalogRepository
	board   port.SalesBoard // optional

	group singleflight.Group
}

func NewReportService(ledger port.OrderRepository, catalog port.CatalogRepository, board port.SalesBoard) *ReportService {
	return &ReportService{ledger: ledger, catalog: catalog, board: board}
}

// TopSelling returns the best selling products by units in non-cancelled
// orders. A limit of zero or less means DefaultTopLimit. Identical
// concurrent calls share one lookup.
func (s *ReportService) TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	v, err, _ := s.group.Do(strconv.Itoa(limit), func() (any, error) {
		return s.topSelling(context.WithoutCancel(ctx), limit)
	})
	if err != nil {
		return nil, err
	}

	rows := v.([]domain.ProductSales)
	out := make([]domain.ProductSales, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *ReportService) topSelling(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if s.board != nil {
		rows, err := s.fromBoard(ctx, limit)
		if err != nil {
			obs.Logger.Warn("sales board unavailable, reading ledger", "error", err)
		} else if len(rows) > 0 {
			return rows, nil
		}
	}

	rows, err := s.ledger.TopSelling(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return rows, nil
}

// fromBoard joins board tallies with the catalog, dropping products that
// were deleted since they sold.
func (s *ReportService) fromBoard(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	tallies, err := s.board.Top(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(tallies) == 0 {
		return nil, nil
	}

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]domain.ProductSales, 0, len(tallies))
	for _, t := range tallies {
		p, ok := byID[t.ProductID]
		if !ok {
			continue
		}
		out = append(out, domain.ProductSales{ProductID: p.ID, Name: p.Name, Flavor: p.Flavor, TotalSold: t.TotalSold})
	}
	domain.SortSales(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
