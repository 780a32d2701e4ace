package domain

import "github.com/shopspring/decimal"

// Position is the derived holding of one non-cash instrument.
type Position struct {
	InstrumentID int64           `json:"instrumentId"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalValue   decimal.Decimal `json:"totalValue"` // net cost basis
	CurrentValue decimal.Decimal `json:"currentValue"`
	TotalReturn  decimal.Decimal `json:"totalReturn"` // percent
}

// Portfolio is the valuation result for one user.
type Portfolio struct {
	TotalAccountValue decimal.Decimal `json:"totalAccountValue"`
	AvailableCash     decimal.Decimal `json:"availableCash"`
	Positions         []Position      `json:"positions"`
}
