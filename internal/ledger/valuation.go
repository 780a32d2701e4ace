package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// PriceMode selects the reference price used for each position.
type PriceMode string

const (
	// PriceModePerPosition values each position at its own latest close.
	PriceModePerPosition PriceMode = "per_position"
	// PriceModeFirstPosition values every position at the latest close of the
	// first position's instrument. Kept for parity with legacy reports.
	PriceModeFirstPosition PriceMode = "first_position"
)

// Valid reports whether m is a known mode.
func (m PriceMode) Valid() bool {
	return m == PriceModePerPosition || m == PriceModeFirstPosition
}

var hundred = decimal.NewFromInt(100)

// Valuator prices positions and totals an account.
type Valuator struct {
	Mode PriceMode
}

// NewValuator returns a Valuator for mode, falling back to per-position.
func NewValuator(mode PriceMode) Valuator {
	if !mode.Valid() {
		mode = PriceModePerPosition
	}
	return Valuator{Mode: mode}
}

// References lists the instruments whose price Valuate will read.
func (v Valuator) References(positions []domain.Position) []int64 {
	if len(positions) == 0 {
		return nil
	}
	if v.Mode == PriceModeFirstPosition {
		return []int64{positions[0].InstrumentID}
	}
	ids := make([]int64, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.InstrumentID)
	}
	return ids
}

// Valuate sets CurrentValue and TotalReturn on a copy of positions and
// returns cash plus the sum of current values. Missing prices count as zero.
// A zero cost basis yields a zero return.
func (v Valuator) Valuate(positions []domain.Position, prices map[int64]decimal.Decimal, cash decimal.Decimal) (decimal.Decimal, []domain.Position) {
	out := make([]domain.Position, len(positions))
	total := cash

	for i, p := range positions {
		ref := p.InstrumentID
		if v.Mode == PriceModeFirstPosition {
			ref = positions[0].InstrumentID
		}
		current := p.Quantity.Mul(prices[ref])

		p.CurrentValue = current.Round(domain.PriceScale)
		p.TotalReturn = Return(current, p.TotalValue)
		out[i] = p
		total = total.Add(current)
	}
	return total.Round(domain.PriceScale), out
}

// Return computes (current - cost) / cost * 100 rounded to two places, or
// zero when cost is zero.
func Return(current, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return current.Sub(cost).Div(cost).Mul(hundred).Round(domain.PriceScale)
}
