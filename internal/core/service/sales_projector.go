package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/heladeria/internal/core/domain"
	"github.com/rl1809/heladeria/internal/obs"
	"github.com/rl1809/heladeria/internal/port"
)

const applyTimeout = 5 * time.Second

// SalesProjector keeps the sales board in step with the ledger by applying
// the sale events the order workflow publishes.
type SalesProjector struct {
	board   port.SalesBoard
	ledger  port.OrderRepository
	workers int
	wg      sync.WaitGroup
}

func NewSalesProjector(board port.SalesBoard, ledger port.OrderRepository, workers int) *SalesProjector {
	if workers <= 0 {
		workers = 1
	}
	return &SalesProjector{board: board, ledger: ledger, workers: workers}
}

// Rebuild replaces the board with the ledger's totals.
func (p *SalesProjector) Rebuild(ctx context.Context) error {
	tallies, err := p.ledger.TopSelling(ctx, 0)
	if err != nil {
		return fmt.Errorf("load sales: %w", err)
	}
	if err := p.board.Reset(ctx, tallies); err != nil {
		return fmt.Errorf("reset board: %w", err)
	}
	obs.Logger.Info("sales board rebuilt", "products", len(tallies))
	return nil
}

// Start launches the workers. They exit once queue is closed and drained.
func (p *SalesProjector) Start(queue <-chan domain.SaleEvent) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id, queue)
		}(i)
	}
	obs.Logger.Info("sales projector started", "workers", p.workers)
}

func (p *SalesProjector) Wait() {
	p.wg.Wait()
}

func (p *SalesProjector) workerLoop(id int, queue <-chan domain.SaleEvent) {
	for ev := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)

		applied, err := p.board.Apply(ctx, ev)
		switch {
		case err != nil:
			obs.Logger.Error("apply sale event", "worker", id, "event_id", ev.ID, "error", err)
		case !applied:
			obs.Logger.Debug("sale event already applied", "worker", id, "event_id", ev.ID)
		default:
			obs.Logger.Debug("sale event applied", "worker", id, "event_id", ev.ID)
		}

		cancel()
	}
}
