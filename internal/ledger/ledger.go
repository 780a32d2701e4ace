// Package ledger derives cash and share holdings from a user's filled order
// history and values them against market prices. Nothing here is persisted;
// every call recomputes from the full history it is given.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// AvailableCash folds the cash-equivalent orders in filled: CASH_IN adds
// size, CASH_OUT subtracts it. Trades on other instruments are ignored;
// their cash effect arrives through the settlement order each one produced.
func AvailableCash(filled []domain.Order) decimal.Decimal {
	cash := decimal.Zero
	for _, o := range filled {
		if !o.IsCash() {
			continue
		}
		switch o.Side {
		case domain.OrderSideCashIn:
			cash = cash.Add(o.Size)
		case domain.OrderSideCashOut:
			cash = cash.Sub(o.Size)
		}
	}
	return cash
}

// Positions groups the non-cash orders in filled by instrument. Result order
// follows first occurrence; flat positions are kept.
func Positions(filled []domain.Order) []domain.Position {
	var positions []domain.Position
	index := make(map[int64]int)

	for _, o := range filled {
		if o.IsCash() || !o.Side.IsTrade() {
			continue
		}
		i, ok := index[o.Instrument.ID]
		if !ok {
			i = len(positions)
			index[o.Instrument.ID] = i
			positions = append(positions, domain.Position{
				InstrumentID: o.Instrument.ID,
				Ticker:       o.Instrument.Ticker,
				Name:         o.Instrument.Name,
				Quantity:     decimal.Zero,
				TotalValue:   decimal.Zero,
				CurrentValue: decimal.Zero,
				TotalReturn:  decimal.Zero,
			})
		}
		p := &positions[i]
		cost := o.Price.Mul(o.Size)
		if o.Side == domain.OrderSideBuy {
			p.Quantity = p.Quantity.Add(o.Size)
			p.TotalValue = p.TotalValue.Add(cost)
		} else {
			p.Quantity = p.Quantity.Sub(o.Size)
			p.TotalValue = p.TotalValue.Sub(cost)
		}
	}
	return positions
}

// NetQuantity returns the signed share count held in instrumentID.
func NetQuantity(filled []domain.Order, instrumentID int64) decimal.Decimal {
	qty := decimal.Zero
	for _, o := range filled {
		if o.Instrument.ID != instrumentID {
			continue
		}
		switch o.Side {
		case domain.OrderSideBuy:
			qty = qty.Add(o.Size)
		case domain.OrderSideSell:
			qty = qty.Sub(o.Size)
		}
	}
	return qty
}
