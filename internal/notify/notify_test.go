package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{EventOrderRejected}, discardLogger())
	on := NewOrderNotifier(n, "USD")
	ctx := context.Background()

	filled := domain.OrderView{ID: 1, Status: domain.OrderStatusFilled, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}
	rejected := filled
	rejected.Status = domain.OrderStatusRejected
	pending := filled
	pending.Status = domain.OrderStatusNew

	for _, v := range []domain.OrderView{filled, rejected, pending} {
		if err := on.OrderSubmitted(ctx, v); err != nil {
			t.Fatalf("OrderSubmitted: %v", err)
		}
	}
	if err := on.SettlementGap(ctx, 1, 2, domain.ErrSettlementGap); err != nil {
		t.Fatalf("SettlementGap: %v", err)
	}
	want := []string{"Order rejected", "Settlement gap"}
	if strings.Join(rec.titles, "|") != strings.Join(want, "|") {
		t.Fatalf("titles = %v, want %v", rec.titles, want)
	}
}

func TestDispatchCollectsErrors(t *testing.T) {
	boom := errors.New("down")
	ok := &recordingSender{}
	bad := &recordingSender{err: boom}
	n := NewNotifier([]Sender{bad, ok}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped sender error", err)
	}
	if len(ok.titles) != 1 {
		t.Fatal("healthy sender skipped after failure")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"1234.5", "USD", "$1,234.50"},
		{"0.01", "USD", "$0.01"},
		{"12.345", "XXX-NOPE", "12.35 XXX-NOPE"},
	}
	for _, tt := range tests {
		if got := FormatAmount(decimal.RequireFromString(tt.amount), tt.code); got != tt.want {
			t.Fatalf("FormatAmount(%s, %s) = %q, want %q", tt.amount, tt.code, got, tt.want)
		}
	}
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL).Send(context.Background(), "Order filled", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["content"] != "**Order filled**\nbody" {
		t.Fatalf("content = %q", got["content"])
	}
}

func TestTelegramSenderStatus(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewTelegramSender("tok", "42").WithAPIBase(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want status 401", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path = %q", path)
	}
}
