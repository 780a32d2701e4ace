package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/ledger"
)

// PortfolioService values a user's account from their filled orders.
type PortfolioService struct {
	users    domain.UserStore
	orders   domain.OrderStore
	prices   domain.PriceSource
	valuator ledger.Valuator
	logger   *slog.Logger
}

// NewPortfolioService creates a PortfolioService with all required dependencies.
func NewPortfolioService(
	users domain.UserStore,
	orders domain.OrderStore,
	prices domain.PriceSource,
	valuator ledger.Valuator,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		users:    users,
		orders:   orders,
		prices:   prices,
		valuator: valuator,
		logger:   logger,
	}
}

// GetPortfolio returns total account value, available cash and priced
// positions. The ledger is recomputed from the whole history on every call.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID int64) (domain.Portfolio, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: get portfolio: %w", err)
	}

	filled, err := s.orders.ListFilled(ctx, userID)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: load filled orders for %d: %w", userID, err)
	}

	positions := ledger.Positions(filled)
	cash := ledger.AvailableCash(filled)

	prices := make(map[int64]decimal.Decimal)
	for _, id := range s.valuator.References(positions) {
		p, err := s.prices.LatestPrice(ctx, id)
		if err != nil {
			return domain.Portfolio{}, fmt.Errorf("portfolio_service: price for %d: %w", id, err)
		}
		prices[id] = p
	}

	total, priced := s.valuator.Valuate(positions, prices, cash)

	s.logger.DebugContext(ctx, "portfolio_service: portfolio valued",
		slog.Int64("user_id", userID),
		slog.Int("filled_orders", len(filled)),
		slog.Int("positions", len(priced)),
		slog.String("price_mode", string(s.valuator.Mode)),
	)

	return domain.Portfolio{
		TotalAccountValue: total,
		AvailableCash:     cash,
		Positions:         priced,
	}, nil
}
