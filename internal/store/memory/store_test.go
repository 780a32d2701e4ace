package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

var cash = domain.Instrument{ID: 66, Ticker: "ARS", Name: "PESOS", Kind: domain.CashKind}

func newOrder(user int64, status domain.OrderStatus) domain.Order {
	return domain.Order{
		UserID:     user,
		Instrument: domain.Instrument{ID: cash.ID},
		Side:       domain.OrderSideCashIn,
		Kind:       domain.OrderKindMarket,
		Size:       decimal.NewFromInt(10),
		Price:      decimal.NewFromInt(1),
		Status:     status,
		Timestamp:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestWithinUserCommitsOnSuccess(t *testing.T) {
	s := New()
	s.AddInstrument(cash)
	ctx := context.Background()

	err := s.WithinUser(ctx, 1, func(ctx context.Context, tx domain.Repos) error {
		if _, err := tx.Orders.Create(ctx, newOrder(1, domain.OrderStatusFilled)); err != nil {
			return err
		}
		filled, err := tx.Orders.ListFilled(ctx, 1)
		if err != nil {
			return err
		}
		if len(filled) != 1 {
			t.Fatalf("staged ListFilled = %d, want 1", len(filled))
		}
		if len(s.Orders()) != 0 {
			t.Fatal("staged order visible outside the unit of work")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinUser: %v", err)
	}
	got := s.Orders()
	if len(got) != 1 || got[0].Instrument.Kind != domain.CashKind {
		t.Fatalf("Orders() = %+v, want one joined cash order", got)
	}
}

func TestWithinUserRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinUser(ctx, 1, func(ctx context.Context, tx domain.Repos) error {
		if _, err := tx.Orders.Create(ctx, newOrder(1, domain.OrderStatusFilled)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinUser err = %v, want boom", err)
	}
	if n := len(s.Orders()); n != 0 {
		t.Fatalf("Orders() = %d after rollback, want 0", n)
	}
}

func TestFailCreateHook(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("second insert failed")
	s.FailCreateWith(func(n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})

	err := s.WithinUser(ctx, 1, func(ctx context.Context, tx domain.Repos) error {
		for i := 0; i < 2; i++ {
			if _, err := tx.Orders.Create(ctx, newOrder(1, domain.OrderStatusFilled)); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want hook error", err)
	}
	if n := len(s.Orders()); n != 0 {
		t.Fatalf("Orders() = %d, want 0", n)
	}
}

func TestWithinUserSerializesSameUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinUser(ctx, 7, func(context.Context, domain.Repos) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent units for one user = %d, want 1", maxSeen)
	}
}

func TestTransitionConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	orders := s.Repos().Orders
	o, err := orders.Create(ctx, newOrder(1, domain.OrderStatusNew))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	at := time.Unix(1800000000, 0).UTC()

	ok, err := orders.Transition(ctx, o.ID, domain.OrderStatusNew, domain.OrderStatusCancelled, at)
	if err != nil || !ok {
		t.Fatalf("first Transition = %v, %v; want true, nil", ok, err)
	}
	ok, err = orders.Transition(ctx, o.ID, domain.OrderStatusNew, domain.OrderStatusCancelled, at)
	if err != nil || ok {
		t.Fatalf("second Transition = %v, %v; want false, nil", ok, err)
	}
	got, _ := orders.GetByID(ctx, o.ID)
	if got.Status != domain.OrderStatusCancelled || !got.Timestamp.Equal(at) {
		t.Fatalf("order = %s @ %s", got.Status, got.Timestamp)
	}
	if _, err := orders.GetByID(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID(999) err = %v, want ErrNotFound", err)
	}
}

func TestLatestClosePicksNewestDate(t *testing.T) {
	s := New()
	ctx := context.Background()
	md := s.Repos().MarketData
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"10", "30", "20"} {
		dates := []time.Time{day, day.AddDate(0, 0, 2), day.AddDate(0, 0, 1)}
		if _, err := md.Insert(ctx, domain.MarketData{InstrumentID: 5, Close: decimal.RequireFromString(c), Date: dates[i]}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := md.LatestClose(ctx, 5)
	if err != nil {
		t.Fatalf("LatestClose: %v", err)
	}
	if !got.Close.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("LatestClose = %s, want 30", got.Close)
	}
	if _, err := md.LatestClose(ctx, 6); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("LatestClose(6) err = %v, want ErrNotFound", err)
	}
}

func TestGetByKind(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Repos().Instruments.GetByKind(ctx, domain.CashKind); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByKind on empty store err = %v", err)
	}
	s.AddInstrument(domain.Instrument{ID: 70, Kind: domain.CashKind})
	s.AddInstrument(cash)
	got, err := s.Repos().Instruments.GetByKind(ctx, domain.CashKind)
	if err != nil || got.ID != 66 {
		t.Fatalf("GetByKind = %d, %v; want lowest id 66", got.ID, err)
	}
}
