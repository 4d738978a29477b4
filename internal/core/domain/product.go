package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Flavor    string
	Coating   string // optional
	Stock     int
	Brand     string
	Category  string
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductSales is one row of the top-selling report.
type ProductSales struct {
	ProductID string
	Name      string
	Flavor    string
	TotalSold int
}

// SortSales orders report rows by units sold, highest first, ties by id.
func SortSales(rows []ProductSales) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalSold != rows[j].TotalSold {
			return rows[i].TotalSold > rows[j].TotalSold
		}
		return rows[i].ProductID < rows[j].ProductID
	})
}
