package sqlite

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/service"
	"github.com/alanyoungcy/settlement/internal/settlement"
	"github.com/alanyoungcy/settlement/internal/store/memory"
)

// Concurrent MARKET buys for one user must queue on the user's lock and all
// fill, even with more callers than pooled connections.
func TestConcurrentMarketSubmits(t *testing.T) {
	c, cash := openTest(t)
	ctx := context.Background()
	repos := c.Repos()

	if _, err := repos.Orders.Create(ctx, cashIn(cash, 1_000_000, time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	md := repos.MarketData.(*MarketDataStore)
	if _, err := md.Insert(ctx, domain.MarketData{
		InstrumentID: ggalID,
		Close:        decimal.NewFromInt(100),
		Date:         time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := memory.NewBus()
	prices := service.NewPriceService(repos.MarketData, nil, bus, logger)
	svc := service.NewOrderService(c, repos.Orders, prices, settlement.NewAgent(domain.CashKind), c.Audit(), bus, logger)

	const callers = 8
	qty := decimal.NewFromInt(1)
	views := make([]domain.OrderView, callers)
	errs := make([]error, callers)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = svc.Submit(ctx, service.SubmitRequest{
				UserID:       1,
				InstrumentID: ggalID,
				Side:         domain.OrderSideBuy,
				Kind:         domain.OrderKindMarket,
				Quantity:     &qty,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("submit %d: %v", i, errs[i])
		}
		if views[i].Status != domain.OrderStatusFilled || !views[i].Price.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("submit %d = %+v, want FILLED at 100", i, views[i])
		}
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("submits took %s, expected them to queue without hitting the busy timeout", elapsed)
	}

	filled, err := repos.Orders.ListFilled(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	// One cash-in plus a trade and its settlement order per caller.
	if want := 1 + 2*callers; len(filled) != want {
		t.Fatalf("filled orders = %d, want %d", len(filled), want)
	}
}
