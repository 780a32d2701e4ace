package domain

import "time"

// Channels and streams on the signal bus.
const (
	ChannelOrders = "orders"
	ChannelPrices = "prices"
	StreamOrders  = "stream:orders"
)

// OrderEventType names what happened to an order.
type OrderEventType string

const (
	EventOrderSubmitted OrderEventType = "order.submitted"
	EventOrderCancelled OrderEventType = "order.cancelled"
	EventOrderSettled   OrderEventType = "order.settled"
)

// OrderEvent is published on the signal bus after a commit.
type OrderEvent struct {
	Type  OrderEventType `json:"type"`
	Order OrderView      `json:"order"`
	At    time.Time      `json:"at"`
}
