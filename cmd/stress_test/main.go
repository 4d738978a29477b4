package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/adapter/storage"
	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
	unitPrice     = "2.50"
)

func main() {
	ctx := context.Background()

	// Initialize store and service
	store := storage.NewMemoryAdapter()
	product := domain.Product{
		ID:       uuid.NewString(),
		Name:     "Palito bombón",
		Flavor:   "chocolate",
		Stock:    initialStock,
		Brand:    "Frigor",
		Category: "palito",
		Price:    decimal.RequireFromString(unitPrice),
	}
	if err := store.CreateProduct(ctx, product); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	orderService := service.NewOrderService(store, store, store, nil, queueSize)
	defer orderService.Close()

	// Drain the sale event queue in background
	go func() {
		for range orderService.SaleEvents() {
		}
	}()

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			actor := domain.Principal{AccountID: fmt.Sprintf("user-%d", userID), Role: domain.RoleCustomer}
			cart := domain.NewCart(domain.CartLine{ProductID: product.ID, Quantity: 1})

			_, err := orderService.CreateOrder(ctx, actor, cart, "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("user-%d: unexpected error: %v", userID, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", soldOut)
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify final stock
	p, err := store.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", p.Stock)

	if p.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", p.Stock)
	}

	// Verify the ledger holds exactly the sold units
	top, err := store.TopSelling(ctx, 1)
	if err != nil {
		log.Fatalf("failed to read sales: %v", err)
	}
	if len(top) == 1 && top[0].TotalSold == initialStock {
		fmt.Printf("PASS: Ledger records %d units sold\n", initialStock)
	} else {
		fmt.Printf("FAIL: Ledger sales %v, expected %d units\n", top, initialStock)
	}
}
