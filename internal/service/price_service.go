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
)

// PriceService resolves reference prices from market data, reading through
// the price cache.
type PriceService struct {
	market domain.MarketDataStore
	cache  domain.PriceCache
	bus    domain.SignalBus
	logger *slog.Logger
}

var _ domain.PriceSource = (*PriceService)(nil)

// NewPriceService creates a PriceService. cache may be nil.
func NewPriceService(
	market domain.MarketDataStore,
	cache domain.PriceCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		market: market,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

// LatestPrice returns the most recent close for the instrument, or zero
// when no market data exists.
func (s *PriceService) LatestPrice(ctx context.Context, instrumentID int64) (decimal.Decimal, error) {
	if s.cache != nil {
		if p, err := s.cache.GetClose(ctx, instrumentID); err == nil {
			return p, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "price_service: cache read failed",
				slog.Int64("instrument_id", instrumentID),
				slog.String("error", err.Error()),
			)
		}
	}

	md, err := s.market.LatestClose(ctx, instrumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("price_service: latest close for %d: %w", instrumentID, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetClose(ctx, instrumentID, md.Close); cacheErr != nil {
			s.logger.WarnContext(ctx, "price_service: cache set failed",
				slog.Int64("instrument_id", instrumentID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return md.Close, nil
}

// RecordClose stores a market data row, refreshes the cache, and publishes
// a price event.
func (s *PriceService) RecordClose(ctx context.Context, md domain.MarketData) (domain.MarketData, error) {
	if md.Close.IsNegative() {
		return domain.MarketData{}, fmt.Errorf("price_service: record close: %w", domain.Invalid("close", "must not be negative"))
	}
	if md.Date.IsZero() {
		md.Date = time.Now().UTC()
	}
	md.Close = md.Close.Round(domain.PriceScale)

	saved, err := s.market.Insert(ctx, md)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("price_service: record close for %d: %w", md.InstrumentID, err)
	}

	// Older rows may arrive late; drop the entry and let the next read
	// resolve the true latest.
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, md.InstrumentID); err != nil {
			s.logger.WarnContext(ctx, "price_service: cache invalidate failed",
				slog.Int64("instrument_id", md.InstrumentID),
				slog.String("error", err.Error()),
			)
		}
	}

	evt, _ := json.Marshal(map[string]any{
		"event":         "close",
		"instrument_id": saved.InstrumentID,
		"close":         saved.Close,
		"date":          saved.Date.Format(time.RFC3339),
	})
	if pubErr := s.bus.Publish(ctx, domain.ChannelPrices, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "price_service: publish close event failed",
			slog.Int64("instrument_id", saved.InstrumentID),
			slog.String("error", pubErr.Error()),
		)
	}
	return saved, nil
}
