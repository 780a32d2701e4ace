package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// Event types accepted by Notify.
const (
	EventOrderFilled   = "order_filled"
	EventOrderRejected = "order_rejected"
	EventOrderCanceled = "order_cancelled"
	EventSettlementGap = "settlement_gap"
)

// OrderNotifier formats order outcomes for a Notifier.
type OrderNotifier struct {
	n        *Notifier
	currency string
}

// NewOrderNotifier wraps n; amounts are displayed in currency.
func NewOrderNotifier(n *Notifier, currency string) *OrderNotifier {
	return &OrderNotifier{n: n, currency: currency}
}

// OrderSubmitted reports a FILLED or REJECTED submission. NEW orders are
// not announced.
func (o *OrderNotifier) OrderSubmitted(ctx context.Context, v domain.OrderView) error {
	var event, title string
	switch v.Status {
	case domain.OrderStatusFilled:
		event, title = EventOrderFilled, "Order filled"
	case domain.OrderStatusRejected:
		event, title = EventOrderRejected, "Order rejected"
	default:
		return nil
	}
	return o.n.Notify(ctx, event, title, o.describe(v))
}

// OrderCancelled reports a cancellation.
func (o *OrderNotifier) OrderCancelled(ctx context.Context, v domain.OrderView) error {
	return o.n.Notify(ctx, EventOrderCanceled, "Order cancelled", o.describe(v))
}

// SettlementGap alerts every sender regardless of the event filter.
func (o *OrderNotifier) SettlementGap(ctx context.Context, userID, instrumentID int64, cause error) error {
	msg := fmt.Sprintf("user %d instrument %d: trade could not be settled: %v", userID, instrumentID, cause)
	return o.n.NotifyAll(ctx, "Settlement gap", msg)
}

func (o *OrderNotifier) describe(v domain.OrderView) string {
	notional := v.Quantity.Mul(v.Price)
	return fmt.Sprintf("#%d user %d %s %s %s x %s on instrument %d (%s)",
		v.ID, v.UserID, v.Type, v.Side, v.Quantity.String(),
		FormatAmount(v.Price, o.currency), v.InstrumentID,
		FormatAmount(notional, o.currency))
}
