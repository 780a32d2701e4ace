package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/ledger"
	"github.com/alanyoungcy/settlement/internal/settlement"
)

// cashUnitPrice is the price of one unit of the cash-equivalent instrument.
var cashUnitPrice = decimal.NewFromInt(1)

// SubmitRequest is an order as requested by a caller.
type SubmitRequest struct {
	UserID       int64
	InstrumentID int64
	Side         domain.OrderSide
	Kind         domain.OrderKind
	Quantity     *decimal.Decimal
	Price        *decimal.Decimal
}

// Validate checks the request shape. It does not touch any store.
func (r SubmitRequest) Validate() error {
	var errs []error
	if r.UserID <= 0 {
		errs = append(errs, domain.Invalid("userId", "must be a positive integer"))
	}
	if r.InstrumentID <= 0 {
		errs = append(errs, domain.Invalid("instrumentId", "must be a positive integer"))
	}
	if !r.Side.Valid() {
		errs = append(errs, domain.Invalid("side", fmt.Sprintf("unknown side %q", r.Side)))
	}
	if !r.Kind.Valid() {
		errs = append(errs, domain.Invalid("type", fmt.Sprintf("unknown type %q", r.Kind)))
	}
	switch {
	case r.Quantity == nil:
		errs = append(errs, domain.Invalid("quantity", "is required"))
	case !r.Quantity.IsPositive():
		errs = append(errs, domain.Invalid("quantity", "must be positive"))
	}
	if r.Kind == domain.OrderKindLimit {
		switch {
		case r.Price == nil:
			errs = append(errs, domain.Invalid("price", "is required for LIMIT orders"))
		case !r.Price.IsPositive():
			errs = append(errs, domain.Invalid("price", "must be positive"))
		case !r.Price.Equal(r.Price.Round(domain.PriceScale)):
			errs = append(errs, domain.Invalid("price", "must have at most 2 decimal digits"))
		}
	}
	if (r.Side == domain.OrderSideCashIn || r.Side == domain.OrderSideCashOut) && r.Kind == domain.OrderKindLimit {
		errs = append(errs, domain.Invalid("type", "cash movements must be MARKET"))
	}
	return errors.Join(errs...)
}

// OrderEvents receives order outcomes after commit.
type OrderEvents interface {
	OrderSubmitted(ctx context.Context, v domain.OrderView) error
	OrderCancelled(ctx context.Context, v domain.OrderView) error
	SettlementGap(ctx context.Context, userID, instrumentID int64, cause error) error
}

// OrderService accepts, fills, rejects, and cancels orders against each
// user's derived ledger.
type OrderService struct {
	tx     domain.TxManager
	orders domain.OrderStore
	prices domain.PriceSource
	agent  *settlement.Agent
	audit  domain.AuditStore
	bus    domain.SignalBus
	logger *slog.Logger

	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
	events     OrderEvents
	now        func() time.Time
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	tx domain.TxManager,
	orders domain.OrderStore,
	prices domain.PriceSource,
	agent *settlement.Agent,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		tx:     tx,
		orders: orders,
		prices: prices,
		agent:  agent,
		audit:  audit,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// WithRateLimit caps submissions per user to limit per window.
func (s *OrderService) WithRateLimit(limiter domain.RateLimiter, limit int, window time.Duration) *OrderService {
	s.limiter = limiter
	s.rateLimit = limit
	s.rateWindow = window
	return s
}

// WithEvents attaches a receiver for post-commit order outcomes.
func (s *OrderService) WithEvents(events OrderEvents) *OrderService {
	s.events = events
	return s
}

// WithClock replaces the time source used for order timestamps.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// Submit validates req, decides FILLED/NEW/REJECTED against the user's
// ledger, and persists the order together with its settlement order in one
// unit of work serialized per user.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (domain.OrderView, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderView{}, fmt.Errorf("order_service: submit: %w", err)
	}
	if err := s.checkRate(ctx, req.UserID); err != nil {
		return domain.OrderView{}, err
	}

	// The latest close is not ledger state, so it is read before the unit of
	// work takes the user's lock.
	market, err := s.marketPrice(ctx, req)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("order_service: submit: %w", err)
	}

	var saved, settled domain.Order
	err = s.tx.WithinUser(ctx, req.UserID, func(ctx context.Context, tx domain.Repos) error {
		if _, err := tx.Users.GetByID(ctx, req.UserID); err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		inst, err := tx.Instruments.GetByID(ctx, req.InstrumentID)
		if err != nil {
			return fmt.Errorf("resolve instrument: %w", err)
		}
		if err := checkInstrument(req.Side, inst); err != nil {
			return err
		}

		order := domain.Order{
			UserID:     req.UserID,
			Instrument: inst,
			Side:       req.Side,
			Kind:       req.Kind,
			Size:       *req.Quantity,
			Price:      priceFor(req, inst, market),
			Status:     provisionalStatus(req.Kind),
			Timestamp:  s.now().UTC(),
		}

		filled, err := tx.Orders.ListFilled(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("load filled orders: %w", err)
		}
		order.Status = decide(order, filled)

		saved, err = tx.Orders.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if saved.Status == domain.OrderStatusFilled && saved.Side.IsTrade() {
			settled, err = s.agent.Settle(ctx, tx, saved)
			if err != nil {
				return fmt.Errorf("settle order %d: %w", saved.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSettlementGap) {
			s.reportGap(ctx, req, err)
		}
		return domain.OrderView{}, fmt.Errorf("order_service: submit: %w", err)
	}

	view := saved.View()
	s.publish(ctx, domain.EventOrderSubmitted, view)
	detail := map[string]any{
		"order_id":      saved.ID,
		"user_id":       saved.UserID,
		"instrument_id": saved.Instrument.ID,
		"side":          string(saved.Side),
		"type":          string(saved.Kind),
		"size":          saved.Size.String(),
		"price":         saved.Price.String(),
		"status":        string(saved.Status),
	}
	if settled.ID != 0 {
		detail["settlement_order_id"] = settled.ID
		s.publish(ctx, domain.EventOrderSettled, settled.View())
	}
	s.auditLog(ctx, "order.submitted", saved.ID, detail)
	if s.events != nil {
		if err := s.events.OrderSubmitted(ctx, view); err != nil {
			s.logger.WarnContext(ctx, "order_service: notify failed",
				slog.Int64("order_id", saved.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order_service: order submitted",
		slog.Int64("order_id", saved.ID),
		slog.Int64("user_id", saved.UserID),
		slog.Int64("instrument_id", saved.Instrument.ID),
		slog.String("side", string(saved.Side)),
		slog.String("type", string(saved.Kind)),
		slog.String("status", string(saved.Status)),
	)
	return view, nil
}

// Cancel moves a NEW order to CANCELLED. Any other status fails with a
// *domain.TransitionError naming it.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (domain.OrderView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("order_service: cancel: %w", err)
	}
	if !order.Status.CanTransition(domain.OrderStatusCancelled) {
		return domain.OrderView{}, fmt.Errorf("order_service: cancel %d: %w", orderID, &domain.TransitionError{Status: order.Status})
	}

	at := s.now().UTC()
	var cancelled domain.Order
	err = s.tx.WithinUser(ctx, order.UserID, func(ctx context.Context, tx domain.Repos) error {
		ok, err := tx.Orders.Transition(ctx, orderID, domain.OrderStatusNew, domain.OrderStatusCancelled, at)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		current, err := tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		if !ok {
			return &domain.TransitionError{Status: current.Status}
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("order_service: cancel %d: %w", orderID, err)
	}

	view := cancelled.View()
	s.publish(ctx, domain.EventOrderCancelled, view)
	s.auditLog(ctx, "order.cancelled", orderID, map[string]any{
		"order_id": orderID,
		"user_id":  cancelled.UserID,
	})
	if s.events != nil {
		if err := s.events.OrderCancelled(ctx, view); err != nil {
			s.logger.WarnContext(ctx, "order_service: notify failed",
				slog.Int64("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order_service: order cancelled",
		slog.Int64("order_id", orderID),
		slog.Int64("user_id", cancelled.UserID),
	)
	return view, nil
}

// GetOrder returns a single order's view.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (domain.OrderView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("order_service: get order %d: %w", orderID, err)
	}
	return order.View(), nil
}

func (s *OrderService) checkRate(ctx context.Context, userID int64) error {
	if s.limiter == nil || s.rateLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("orders:user:%d", userID), s.rateLimit, s.rateWindow)
	if err != nil {
		return fmt.Errorf("order_service: rate limiter: %w", err)
	}
	if !allowed {
		return fmt.Errorf("order_service: user %d: %w", userID, domain.ErrRateLimited)
	}
	return nil
}

// marketPrice reads the latest close for a MARKET trade. Other requests
// are priced from the request itself.
func (s *OrderService) marketPrice(ctx context.Context, req SubmitRequest) (decimal.Decimal, error) {
	if req.Kind != domain.OrderKindMarket || !req.Side.IsTrade() {
		return decimal.Zero, nil
	}
	p, err := s.prices.LatestPrice(ctx, req.InstrumentID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve price: %w", err)
	}
	return p.Round(domain.PriceScale), nil
}

// priceFor implements the MARKET/LIMIT pricing rule. Cash movements are
// always priced at one unit.
func priceFor(req SubmitRequest, inst domain.Instrument, market decimal.Decimal) decimal.Decimal {
	if inst.IsCash() {
		return cashUnitPrice
	}
	if req.Kind == domain.OrderKindLimit {
		return req.Price.Round(domain.PriceScale)
	}
	return market
}

func provisionalStatus(kind domain.OrderKind) domain.OrderStatus {
	if kind == domain.OrderKindMarket {
		return domain.OrderStatusFilled
	}
	return domain.OrderStatusNew
}

// decide applies the affordability and holdings checks to the provisional
// status.
func decide(o domain.Order, filled []domain.Order) domain.OrderStatus {
	switch o.Side {
	case domain.OrderSideBuy:
		if o.Size.Mul(o.Price).GreaterThan(ledger.AvailableCash(filled)) {
			return domain.OrderStatusRejected
		}
	case domain.OrderSideSell:
		if ledger.NetQuantity(filled, o.Instrument.ID).LessThan(o.Size) {
			return domain.OrderStatusRejected
		}
	case domain.OrderSideCashOut:
		if o.Size.GreaterThan(ledger.AvailableCash(filled)) {
			return domain.OrderStatusRejected
		}
	}
	return o.Status
}

// checkInstrument pairs trade sides with securities and cash sides with the
// cash-equivalent instrument.
func checkInstrument(side domain.OrderSide, inst domain.Instrument) error {
	if side.IsTrade() && inst.IsCash() {
		return domain.Invalid("instrumentId", fmt.Sprintf("%s is not allowed on cash instrument %d", side, inst.ID))
	}
	if !side.IsTrade() && !inst.IsCash() {
		return domain.Invalid("instrumentId", fmt.Sprintf("%s requires the cash instrument, got %d", side, inst.ID))
	}
	return nil
}

func (s *OrderService) reportGap(ctx context.Context, req SubmitRequest, cause error) {
	s.logger.ErrorContext(ctx, "order_service: settlement gap, trade rolled back",
		slog.Int64("user_id", req.UserID),
		slog.Int64("instrument_id", req.InstrumentID),
		slog.String("error", cause.Error()),
	)
	if s.events == nil {
		return
	}
	if err := s.events.SettlementGap(ctx, req.UserID, req.InstrumentID, cause); err != nil {
		s.logger.WarnContext(ctx, "order_service: settlement gap alert failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) publish(ctx context.Context, typ domain.OrderEventType, v domain.OrderView) {
	evt, _ := json.Marshal(domain.OrderEvent{Type: typ, Order: v, At: s.now().UTC()})
	if err := s.bus.Publish(ctx, domain.ChannelOrders, evt); err != nil {
		s.logger.WarnContext(ctx, "order_service: publish event failed",
			slog.Int64("order_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamOrders, evt); err != nil {
		s.logger.WarnContext(ctx, "order_service: stream append failed",
			slog.Int64("order_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) auditLog(ctx context.Context, event string, orderID int64, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "order_service: audit log failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
