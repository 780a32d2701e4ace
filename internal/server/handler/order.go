package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (domain.OrderView, error)
	Cancel(ctx context.Context, orderID int64) (domain.OrderView, error)
	GetOrder(ctx context.Context, orderID int64) (domain.OrderView, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// submitOrderRequest accepts quantity and price as JSON numbers or strings.
type submitOrderRequest struct {
	UserID       int64            `json:"userId"`
	InstrumentID int64            `json:"instrumentId"`
	Side         domain.OrderSide `json:"side"`
	Type         domain.OrderKind `json:"type"`
	Quantity     *decimal.Decimal `json:"quantity"`
	Price        *decimal.Decimal `json:"price"`
}

type cancelOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

// SubmitOrder places an order and returns it with its decided status.
// POST /api/orders/submit
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeValidation(w, []string{err.Error()})
		return
	}

	view, err := h.orders.Submit(r.Context(), service.SubmitRequest{
		UserID:       req.UserID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		Kind:         req.Type,
		Quantity:     req.Quantity,
		Price:        req.Price,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "submit order", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelOrder cancels a NEW order.
// POST /api/orders/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeValidation(w, []string{err.Error()})
		return
	}
	if req.OrderID <= 0 {
		writeValidation(w, []string{"orderId: must be a positive integer"})
		return
	}

	view, err := h.orders.Cancel(r.Context(), req.OrderID)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetOrder returns one order.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	view, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
