package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// Seed loads a small catalog for the memory backend: one user, the
// cash-equivalent instrument, a few equities with a close each, and an
// opening deposit.
func Seed(ctx context.Context, s *Store, now time.Time) error {
	s.AddUser(domain.User{ID: 1, Email: "demo@example.com", AccountNumber: "10001"})

	cash := domain.Instrument{ID: 66, Ticker: "ARS", Name: "PESOS", Kind: domain.CashKind}
	s.AddInstrument(cash)

	equities := []struct {
		inst  domain.Instrument
		close string
	}{
		{domain.Instrument{ID: 1, Ticker: "DYCA", Name: "Dycasa S.A.", Kind: "ACCIONES"}, "240.50"},
		{domain.Instrument{ID: 31, Ticker: "PAMP", Name: "Pampa Holding S.A.", Kind: "ACCIONES"}, "925.85"},
		{domain.Instrument{ID: 47, Ticker: "GGAL", Name: "Grupo Financiero Galicia", Kind: "ACCIONES"}, "291.15"},
	}
	md := s.Repos().MarketData
	for _, e := range equities {
		s.AddInstrument(e.inst)
		price := decimal.RequireFromString(e.close)
		if _, err := md.Insert(ctx, domain.MarketData{
			InstrumentID:  e.inst.ID,
			High:          price,
			Low:           price,
			Open:          price,
			Close:         price,
			PreviousClose: price,
			Date:          now.Truncate(24 * time.Hour),
		}); err != nil {
			return err
		}
	}

	_, err := s.Repos().Orders.Create(ctx, domain.Order{
		UserID:     1,
		Instrument: cash,
		Side:       domain.OrderSideCashIn,
		Kind:       domain.OrderKindMarket,
		Size:       decimal.NewFromInt(1_000_000),
		Price:      decimal.NewFromInt(1),
		Status:     domain.OrderStatusFilled,
		Timestamp:  now,
	})
	return err
}
