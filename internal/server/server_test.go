package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/ledger"
	"github.com/alanyoungcy/settlement/internal/server/handler"
	"github.com/alanyoungcy/settlement/internal/service"
	"github.com/alanyoungcy/settlement/internal/settlement"
	"github.com/alanyoungcy/settlement/internal/store/memory"
)

const (
	richUser  = 1
	brokeUser = 2
	ggalID    = 47
	cashID    = 66
)

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := memory.New()
	s.AddUser(domain.User{ID: richUser, Email: "rich@example.com"})
	s.AddUser(domain.User{ID: brokeUser, Email: "broke@example.com"})
	s.AddInstrument(domain.Instrument{ID: cashID, Ticker: "ARS", Name: "PESOS", Kind: domain.CashKind})
	s.AddInstrument(domain.Instrument{ID: ggalID, Ticker: "GGAL", Name: "Grupo Financiero Galicia", Kind: "ACCIONES"})
	if _, err := s.Repos().MarketData.Insert(ctx, domain.MarketData{
		InstrumentID: ggalID,
		Close:        decimal.NewFromInt(100),
		Date:         time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	bus := memory.NewBus()
	prices := service.NewPriceService(s.Repos().MarketData, nil, bus, logger)
	orders := service.NewOrderService(s, s.Repos().Orders, prices, settlement.NewAgent(""), s, bus, logger)
	portfolios := service.NewPortfolioService(s.Repos().Users, s.Repos().Orders, prices, ledger.NewValuator(""), logger)

	srv := NewServer(cfg, Handlers{
		Health:     handler.NewHealthHandler(nil, logger),
		Orders:     handler.NewOrderHandler(orders, logger),
		Portfolios: handler.NewPortfolioHandler(portfolios, logger),
		MarketData: handler.NewMarketDataHandler(prices, logger),
		Events:     handler.NewEventHandler(bus, logger),
	}, nil, memory.NewLimiter(), logger)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func submit(t *testing.T, h http.Handler, body string) domain.OrderView {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/orders/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit %s: status %d: %s", body, rec.Code, rec.Body)
	}
	var v domain.OrderView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func deposit(t *testing.T, h http.Handler, user int, amount string) {
	t.Helper()
	v := submit(t, h, `{"userId":`+itoa(user)+`,"instrumentId":66,"side":"CASH_IN","type":"MARKET","quantity":`+amount+`}`)
	if v.Status != domain.OrderStatusFilled {
		t.Fatalf("deposit status = %s", v.Status)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestScenarios(t *testing.T) {
	h := newTestServer(t, Config{})
	deposit(t, h, richUser, "1000000")
	if v := submit(t, h, `{"userId":1,"instrumentId":47,"side":"BUY","type":"MARKET","quantity":2}`); v.Status != domain.OrderStatusFilled {
		t.Fatalf("seed buy status = %s", v.Status)
	}

	t.Run("market buy without cash is rejected", func(t *testing.T) {
		v := submit(t, h, `{"userId":2,"instrumentId":47,"side":"BUY","type":"MARKET","quantity":1}`)
		if v.Status != domain.OrderStatusRejected {
			t.Fatalf("status = %s, want REJECTED", v.Status)
		}
		if !v.Price.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("market price = %s, want latest close 100", v.Price)
		}
	})

	var openID int64
	t.Run("limit sell within holdings stays new", func(t *testing.T) {
		v := submit(t, h, `{"userId":1,"instrumentId":47,"side":"SELL","type":"LIMIT","quantity":1,"price":"1000"}`)
		if v.Status != domain.OrderStatusNew {
			t.Fatalf("status = %s, want NEW", v.Status)
		}
		openID = v.ID
	})

	t.Run("limit buy above cash is rejected", func(t *testing.T) {
		deposit(t, h, brokeUser, "10")
		v := submit(t, h, `{"userId":2,"instrumentId":47,"side":"BUY","type":"LIMIT","quantity":1,"price":999999}`)
		if v.Status != domain.OrderStatusRejected {
			t.Fatalf("status = %s, want REJECTED", v.Status)
		}
	})

	t.Run("limit sell above holdings is rejected", func(t *testing.T) {
		v := submit(t, h, `{"userId":1,"instrumentId":47,"side":"SELL","type":"LIMIT","quantity":9999,"price":"100"}`)
		if v.Status != domain.OrderStatusRejected {
			t.Fatalf("status = %s, want REJECTED", v.Status)
		}
	})

	t.Run("cancel new order", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/orders/cancel", `{"orderId":`+itoa(int(openID))+`}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body)
		}
		var v domain.OrderView
		if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
			t.Fatal(err)
		}
		if v.Status != domain.OrderStatusCancelled || v.ID != openID {
			t.Fatalf("cancelled = %+v", v)
		}
	})

	t.Run("cancel filled order conflicts", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/orders/cancel", `{"orderId":1}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status %d, want 409", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Cannot cancel order with status FILLED") {
			t.Fatalf("body = %s", rec.Body)
		}
	})

	t.Run("cancel twice conflicts with cancelled", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/orders/cancel", `{"orderId":`+itoa(int(openID))+`}`)
		if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "CANCELLED") {
			t.Fatalf("status %d body %s", rec.Code, rec.Body)
		}
	})
}

func TestPortfolioEndpoint(t *testing.T) {
	h := newTestServer(t, Config{})

	t.Run("no history is all zero", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/portfolio/2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body)
		}
		var p domain.Portfolio
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatal(err)
		}
		if !p.TotalAccountValue.IsZero() || !p.AvailableCash.IsZero() || len(p.Positions) != 0 {
			t.Fatalf("portfolio = %+v", p)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte(`"positions":[]`)) {
			t.Fatalf("positions should encode as an empty list: %s", rec.Body)
		}
	})

	t.Run("valued after a buy", func(t *testing.T) {
		deposit(t, h, richUser, "1000")
		submit(t, h, `{"userId":1,"instrumentId":47,"side":"BUY","type":"MARKET","quantity":3}`)
		rec := do(t, h, http.MethodGet, "/api/portfolio/1", "")
		var p domain.Portfolio
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatal(err)
		}
		if !p.AvailableCash.Equal(decimal.NewFromInt(700)) || !p.TotalAccountValue.Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("cash %s total %s, want 700 and 1000", p.AvailableCash, p.TotalAccountValue)
		}
		if len(p.Positions) != 1 || !p.Positions[0].Quantity.Equal(decimal.NewFromInt(3)) {
			t.Fatalf("positions = %+v", p.Positions)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/portfolio/999", "")
		if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "User with ID 999 not found") {
			t.Fatalf("status %d body %s", rec.Code, rec.Body)
		}
	})

	t.Run("non-integer id", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/portfolio/abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d, want 400", rec.Code)
		}
	})
}

func TestSubmitValidation(t *testing.T) {
	h := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"userId":`, "invalid request body"},
		{"unknown side", `{"userId":1,"instrumentId":47,"side":"HOLD","type":"MARKET","quantity":1}`, "side"},
		{"missing quantity", `{"userId":1,"instrumentId":47,"side":"BUY","type":"MARKET"}`, "quantity: is required"},
		{"limit without price", `{"userId":1,"instrumentId":47,"side":"BUY","type":"LIMIT","quantity":1}`, "price"},
		{"three decimals", `{"userId":1,"instrumentId":47,"side":"BUY","type":"LIMIT","quantity":1,"price":"1.005"}`, "2 decimal"},
		{"buy on cash", `{"userId":1,"instrumentId":66,"side":"BUY","type":"MARKET","quantity":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/orders/submit", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400: %s", rec.Code, rec.Body)
			}
			var body struct {
				Errors []string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Errors) == 0 {
				t.Fatalf("body = %s, %v", rec.Body, err)
			}
			if !strings.Contains(strings.Join(body.Errors, "; "), tt.want) {
				t.Fatalf("errors %v do not mention %q", body.Errors, tt.want)
			}
		})
	}
}

func TestSubmitUnknownEntities(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodPost, "/api/orders/submit", `{"userId":999,"instrumentId":47,"side":"BUY","type":"MARKET","quantity":1}`)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "User with ID 999 not found") {
		t.Fatalf("unknown user: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/orders/submit", `{"userId":1,"instrumentId":5,"side":"BUY","type":"MARKET","quantity":1}`)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Instrument with ID 5 not found") {
		t.Fatalf("unknown instrument: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/orders/cancel", `{"orderId":12345}`)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Order with ID 12345 not found") {
		t.Fatalf("unknown order: %d %s", rec.Code, rec.Body)
	}
}

func TestGetOrder(t *testing.T) {
	h := newTestServer(t, Config{})
	deposit(t, h, richUser, "500")

	rec := do(t, h, http.MethodGet, "/api/orders/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var v domain.OrderView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.ID != 1 || v.Side != domain.OrderSideCashIn || !v.Quantity.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("order = %+v", v)
	}
	if rec := do(t, h, http.MethodGet, "/api/orders/x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d", rec.Code)
	}
}

func TestMarketDataAndEvents(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodPost, "/api/marketdata", `{"instrumentId":47,"close":"120.5","date":"2024-06-04T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record close: %d %s", rec.Code, rec.Body)
	}

	deposit(t, h, brokeUser, "1000")
	v := submit(t, h, `{"userId":2,"instrumentId":47,"side":"BUY","type":"MARKET","quantity":1}`)
	if !v.Price.Equal(decimal.RequireFromString("120.5")) {
		t.Fatalf("market price = %s, want the new close", v.Price)
	}

	rec = do(t, h, http.MethodGet, "/api/events/orders?after=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events: %d %s", rec.Code, rec.Body)
	}
	var page struct {
		Events []struct {
			ID    string            `json:"id"`
			Event domain.OrderEvent `json:"event"`
		} `json:"events"`
		Next string `json:"next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	// deposit, buy, and the buy's settlement order
	if len(page.Events) != 3 {
		t.Fatalf("got %d events, want 3: %s", len(page.Events), rec.Body)
	}
	if page.Events[2].Event.Type != domain.EventOrderSettled {
		t.Fatalf("last event = %s, want settlement", page.Events[2].Event.Type)
	}

	rec = do(t, h, http.MethodGet, "/api/events/orders?after="+page.Next, "")
	if !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Fatalf("after last id should be empty: %s", rec.Body)
	}
}

func TestAuthAndHealth(t *testing.T) {
	h := newTestServer(t, Config{APIKey: "k"})

	if rec := do(t, h, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/portfolio/1", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: %d", rec.Code)
	}
}
