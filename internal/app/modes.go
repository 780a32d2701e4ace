package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/settlement/internal/ledger"
	"github.com/alanyoungcy/settlement/internal/notify"
	"github.com/alanyoungcy/settlement/internal/server"
	"github.com/alanyoungcy/settlement/internal/server/handler"
	"github.com/alanyoungcy/settlement/internal/server/ws"
	"github.com/alanyoungcy/settlement/internal/service"
	"github.com/alanyoungcy/settlement/internal/settlement"
)

// ServerMode serves the HTTP API and WebSocket feed, and runs the monthly
// archive loop when enabled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	agent := settlement.NewAgent(a.cfg.Ledger.CashInstrumentKind)

	// Without a cash instrument every fill would fail to settle.
	cash, err := agent.CashInstrument(ctx, deps.Instruments)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	a.logger.InfoContext(ctx, "cash instrument resolved",
		slog.Int64("instrument_id", cash.ID),
		slog.String("ticker", cash.Ticker),
	)

	prices := service.NewPriceService(deps.MarketData, deps.PriceCache, deps.SignalBus, a.logger)
	orders := service.NewOrderService(
		deps.Tx, deps.Orders, prices, agent, deps.Audit, deps.SignalBus, a.logger,
	)
	if a.cfg.Orders.RateLimit > 0 {
		orders.WithRateLimit(deps.RateLimiter, a.cfg.Orders.RateLimit, a.cfg.Orders.RateWindow.Duration)
	}
	if deps.Notifier.Enabled() {
		orders.WithEvents(notify.NewOrderNotifier(deps.Notifier, a.cfg.Ledger.Currency))
	}
	portfolios := service.NewPortfolioService(
		deps.Users, deps.Orders, prices,
		ledger.NewValuator(ledger.PriceMode(a.cfg.Portfolio.PriceMode)),
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(deps.Checks, a.logger),
		Orders:     handler.NewOrderHandler(orders, a.logger),
		Portfolios: handler.NewPortfolioHandler(portfolios, a.logger),
		MarketData: handler.NewMarketDataHandler(prices, a.logger),
		Events:     handler.NewEventHandler(deps.Streams, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil && a.cfg.Archive.Enabled {
		archive := service.NewArchiveService(deps.Archiver, deps.LockManager, a.cfg.Archive.LockTTL.Duration, a.logger)
		g.Go(func() error {
			return archive.Run(ctx, a.cfg.Archive.Interval.Duration)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ArchiveMode exports the previous calendar month once and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not configured")
	}
	archive := service.NewArchiveService(deps.Archiver, deps.LockManager, a.cfg.Archive.LockTTL.Duration, a.logger)
	n, err := archive.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive mode: done", slog.Int64("orders", n))
	return nil
}
