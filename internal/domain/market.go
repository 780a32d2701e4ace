package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is one daily price row for an instrument.
type MarketData struct {
	ID            int64
	InstrumentID  int64
	High          decimal.Decimal
	Low           decimal.Decimal
	Open          decimal.Decimal
	Close         decimal.Decimal
	PreviousClose decimal.Decimal
	Date          time.Time
}
