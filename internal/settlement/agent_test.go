package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/store/memory"
)

var cash = domain.Instrument{ID: 66, Ticker: "ARS", Name: "PESOS", Kind: domain.CashKind}

func trade(side domain.OrderSide, size, price string) domain.Order {
	return domain.Order{
		ID:         9,
		UserID:     3,
		Instrument: domain.Instrument{ID: 47, Kind: "ACCIONES"},
		Side:       side,
		Kind:       domain.OrderKindLimit,
		Size:       decimal.RequireFromString(size),
		Price:      decimal.RequireFromString(price),
		Status:     domain.OrderStatusFilled,
		Timestamp:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestBuild(t *testing.T) {
	a := NewAgent("")
	tests := []struct {
		side domain.OrderSide
		want domain.OrderSide
	}{
		{domain.OrderSideBuy, domain.OrderSideCashOut},
		{domain.OrderSideSell, domain.OrderSideCashIn},
	}
	for _, tt := range tests {
		t.Run(string(tt.side), func(t *testing.T) {
			tr := trade(tt.side, "3", "101.25")
			got, err := a.Build(cash, tr)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got.Side != tt.want {
				t.Fatalf("side = %s, want %s", got.Side, tt.want)
			}
			if got.Kind != domain.OrderKindMarket || got.Status != domain.OrderStatusFilled {
				t.Fatalf("kind/status = %s/%s, want MARKET/FILLED", got.Kind, got.Status)
			}
			if got.Instrument.ID != cash.ID || got.UserID != tr.UserID || !got.Timestamp.Equal(tr.Timestamp) {
				t.Fatalf("settlement not on cash instrument for same user/time: %+v", got)
			}
			if !got.Size.Mul(got.Price).Equal(tr.Size.Mul(tr.Price)) {
				t.Fatalf("size*price = %s, want %s", got.Size.Mul(got.Price), tr.Size.Mul(tr.Price))
			}
		})
	}
}

func TestBuildRejectsNonTrades(t *testing.T) {
	a := NewAgent("")
	if _, err := a.Build(cash, trade(domain.OrderSideCashIn, "1", "1")); err == nil {
		t.Fatal("Build(CASH_IN) succeeded, want error")
	}
	tr := trade(domain.OrderSideBuy, "1", "1")
	tr.Status = domain.OrderStatusNew
	if _, err := a.Build(cash, tr); err == nil {
		t.Fatal("Build(NEW) succeeded, want error")
	}
}

func TestSettlePersists(t *testing.T) {
	s := memory.New()
	s.AddInstrument(cash)
	ctx := context.Background()

	var saved domain.Order
	err := s.WithinUser(ctx, 3, func(ctx context.Context, tx domain.Repos) error {
		var err error
		saved, err = NewAgent(domain.CashKind).Settle(ctx, tx, trade(domain.OrderSideBuy, "2", "50"))
		return err
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if saved.ID == 0 || !saved.Size.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("saved = %+v, want id assigned and size 100", saved)
	}
	if n := len(s.Orders()); n != 1 {
		t.Fatalf("orders = %d, want 1", n)
	}
}

func TestSettleWithoutCashInstrument(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	err := s.WithinUser(ctx, 3, func(ctx context.Context, tx domain.Repos) error {
		_, err := NewAgent("").Settle(ctx, tx, trade(domain.OrderSideSell, "1", "10"))
		return err
	})
	if !errors.Is(err, domain.ErrSettlementGap) {
		t.Fatalf("err = %v, want ErrSettlementGap", err)
	}
}
