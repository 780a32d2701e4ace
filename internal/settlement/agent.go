// Package settlement produces the cash-equivalent order that offsets every
// filled trade.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// unitPrice is the price carried by settlement orders; size holds the
// trade's notional so the cash fold moves by size alone.
var unitPrice = decimal.NewFromInt(1)

// Agent builds settlement orders.
type Agent struct {
	cashKind string
}

// NewAgent creates an Agent that settles against instruments of cashKind.
// An empty kind uses domain.CashKind.
func NewAgent(cashKind string) *Agent {
	if cashKind == "" {
		cashKind = domain.CashKind
	}
	return &Agent{cashKind: cashKind}
}

// CashInstrument resolves the cash-equivalent instrument. A missing
// instrument is reported as domain.ErrSettlementGap.
func (a *Agent) CashInstrument(ctx context.Context, instruments domain.InstrumentStore) (domain.Instrument, error) {
	inst, err := instruments.GetByKind(ctx, a.cashKind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Instrument{}, fmt.Errorf("settlement: no %s instrument: %w", a.cashKind, domain.ErrSettlementGap)
		}
		return domain.Instrument{}, fmt.Errorf("settlement: lookup %s instrument: %w", a.cashKind, err)
	}
	return inst, nil
}

// Build returns the settlement order for a filled trade: CASH_OUT for a
// BUY, CASH_IN for a SELL, always MARKET and FILLED.
func (a *Agent) Build(cash domain.Instrument, trade domain.Order) (domain.Order, error) {
	if trade.Status != domain.OrderStatusFilled {
		return domain.Order{}, fmt.Errorf("settlement: order %d is %s, not FILLED", trade.ID, trade.Status)
	}

	var side domain.OrderSide
	switch trade.Side {
	case domain.OrderSideBuy:
		side = domain.OrderSideCashOut
	case domain.OrderSideSell:
		side = domain.OrderSideCashIn
	default:
		return domain.Order{}, fmt.Errorf("settlement: %s orders are not settled", trade.Side)
	}

	return domain.Order{
		UserID:     trade.UserID,
		Instrument: cash,
		Side:       side,
		Kind:       domain.OrderKindMarket,
		Size:       trade.Notional(),
		Price:      unitPrice,
		Status:     domain.OrderStatusFilled,
		Timestamp:  trade.Timestamp,
	}, nil
}

// Settle resolves the cash instrument through tx, builds the settlement
// order for trade and persists it.
func (a *Agent) Settle(ctx context.Context, tx domain.Repos, trade domain.Order) (domain.Order, error) {
	cash, err := a.CashInstrument(ctx, tx.Instruments)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := a.Build(cash, trade)
	if err != nil {
		return domain.Order{}, err
	}
	saved, err := tx.Orders.Create(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement: persist: %w", err)
	}
	return saved, nil
}
