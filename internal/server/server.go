// Package server exposes the settlement API over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/server/handler"
	"github.com/alanyoungcy/settlement/internal/server/middleware"
	"github.com/alanyoungcy/settlement/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if both keys are empty, authentication is disabled
	APIKeyHash  string // bcrypt hash; takes precedence over APIKey

	// Per-IP request limit; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Orders     *handler.OrderHandler
	Portfolios *handler.PortfolioHandler
	MarketData *handler.MarketDataHandler
	Events     *handler.EventHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. hub and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/orders/submit", handlers.Orders.SubmitOrder)
	mux.HandleFunc("POST /api/orders/cancel", handlers.Orders.CancelOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)

	mux.HandleFunc("GET /api/portfolio/{userId}", handlers.Portfolios.GetPortfolio)

	if handlers.MarketData != nil {
		mux.HandleFunc("POST /api/marketdata", handlers.MarketData.RecordClose)
	}
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events/orders", handlers.Events.ListOrderEvents)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	check := middleware.HashedKey(cfg.APIKeyHash)
	if check == nil {
		check = middleware.StaticKey(cfg.APIKey)
	}
	h = middleware.Auth(check, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
