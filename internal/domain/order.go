package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order. CASH_IN and CASH_OUT move the
// cash-equivalent instrument.
type OrderSide string

const (
	OrderSideBuy     OrderSide = "BUY"
	OrderSideSell    OrderSide = "SELL"
	OrderSideCashIn  OrderSide = "CASH_IN"
	OrderSideCashOut OrderSide = "CASH_OUT"
)

// Valid reports whether s is a known side.
func (s OrderSide) Valid() bool {
	switch s {
	case OrderSideBuy, OrderSideSell, OrderSideCashIn, OrderSideCashOut:
		return true
	}
	return false
}

// IsTrade reports whether s is BUY or SELL.
func (s OrderSide) IsTrade() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderKind is the execution style of an order.
type OrderKind string

const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
)

// Valid reports whether k is a known kind.
func (k OrderKind) Valid() bool {
	return k == OrderKindMarket || k == OrderKindLimit
}

// OrderStatus tracks the order lifecycle. Only NEW -> CANCELLED happens
// after creation.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusNew
}

// CanTransition reports whether s may move to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderStatusNew && next == OrderStatusCancelled
}

// PriceScale is the number of fraction digits kept on prices and notionals.
const PriceScale = 2

// Order is a persisted instruction to move shares or cash.
type Order struct {
	ID         int64
	UserID     int64
	Instrument Instrument // ID always set; the rest only when joined
	Side       OrderSide
	Kind       OrderKind
	Size       decimal.Decimal
	Price      decimal.Decimal
	Status     OrderStatus
	Timestamp  time.Time
}

// Notional returns size x price rounded to PriceScale.
func (o Order) Notional() decimal.Decimal {
	return o.Size.Mul(o.Price).Round(PriceScale)
}

// IsCash reports whether the order moves the cash-equivalent instrument.
func (o Order) IsCash() bool {
	return o.Instrument.IsCash()
}

// OrderView is the externally visible shape of an order.
type OrderView struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	InstrumentID int64           `json:"instrumentId"`
	Side         OrderSide       `json:"side"`
	Type         OrderKind       `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Status       OrderStatus     `json:"status"`
	Datetime     time.Time       `json:"datetime"`
}

// View converts o into its external shape.
func (o Order) View() OrderView {
	return OrderView{
		ID:           o.ID,
		UserID:       o.UserID,
		InstrumentID: o.Instrument.ID,
		Side:         o.Side,
		Type:         o.Kind,
		Quantity:     o.Size,
		Price:        o.Price,
		Status:       o.Status,
		Datetime:     o.Timestamp,
	}
}
