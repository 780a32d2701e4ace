package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// PriceRecorder stores new market data rows.
type PriceRecorder interface {
	RecordClose(ctx context.Context, md domain.MarketData) (domain.MarketData, error)
}

// MarketDataHandler ingests closing prices.
type MarketDataHandler struct {
	prices PriceRecorder
	logger *slog.Logger
}

// NewMarketDataHandler creates a MarketDataHandler.
func NewMarketDataHandler(prices PriceRecorder, logger *slog.Logger) *MarketDataHandler {
	return &MarketDataHandler{prices: prices, logger: logger}
}

type marketDataRequest struct {
	InstrumentID  int64           `json:"instrumentId"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	Close         decimal.Decimal `json:"close"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	Date          time.Time       `json:"date"`
}

type marketDataResponse struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrumentId"`
	Close        decimal.Decimal `json:"close"`
	Date         time.Time       `json:"date"`
}

// RecordClose stores one market data row.
// POST /api/marketdata
func (h *MarketDataHandler) RecordClose(w http.ResponseWriter, r *http.Request) {
	var req marketDataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeValidation(w, []string{err.Error()})
		return
	}
	if req.InstrumentID <= 0 {
		writeValidation(w, []string{"instrumentId: must be a positive integer"})
		return
	}

	saved, err := h.prices.RecordClose(r.Context(), domain.MarketData{
		InstrumentID:  req.InstrumentID,
		High:          req.High,
		Low:           req.Low,
		Open:          req.Open,
		Close:         req.Close,
		PreviousClose: req.PreviousClose,
		Date:          req.Date,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "record close", err)
		return
	}
	writeJSON(w, http.StatusCreated, marketDataResponse{
		ID:           saved.ID,
		InstrumentID: saved.InstrumentID,
		Close:        saved.Close,
		Date:         saved.Date,
	})
}
