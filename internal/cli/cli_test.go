package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/config"
	"github.com/alanyoungcy/settlement/internal/domain"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
}

// useServer points the package flags at h and captures output.
func useServer(t *testing.T, h http.HandlerFunc) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	prevURL, prevKey, prevJSON := *serverURL, *apiKey, *rawJSON
	prevOut, prevErr := stdout, stderr
	var out, errOut bytes.Buffer
	*serverURL, *apiKey, *rawJSON = srv.URL, "", true
	stdout, stderr = &out, &errOut
	t.Cleanup(func() {
		*serverURL, *apiKey, *rawJSON = prevURL, prevKey, prevJSON
		stdout, stderr = prevOut, prevErr
	})
	return &out, &errOut
}

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return c.Execute(context.Background(), f)
}

func TestClientSubmit(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders/submit" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(t, w, http.StatusOK, domain.OrderView{ID: 9, Status: domain.OrderStatusFilled})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "k3y")
	view, err := c.Submit(context.Background(), SubmitOrder{
		UserID:       1,
		InstrumentID: 47,
		Side:         domain.OrderSideBuy,
		Type:         domain.OrderKindMarket,
		Quantity:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view.ID != 9 || view.Status != domain.OrderStatusFilled {
		t.Fatalf("view = %+v", view)
	}
	if auth != "Bearer k3y" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got["side"] != "BUY" || got["quantity"] != "10" {
		t.Fatalf("body = %v", got)
	}
	if _, ok := got["price"]; ok {
		t.Fatal("price should be omitted when unset")
	}
}

func TestClientAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   string
	}{
		{"validation", http.StatusBadRequest, map[string][]string{"errors": {"side: required", "quantity: must be positive"}}, "side: required; quantity: must be positive"},
		{"conflict", http.StatusConflict, map[string]string{"error": "Cannot cancel order with status FILLED"}, "409: Cannot cancel"},
		{"empty", http.StatusBadGateway, nil, "api: 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "").Cancel(context.Background(), 3)
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("err = %v, want *APIError %d", err, tt.status)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestClientEventsQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, EventPage{Next: "1-2"})
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "").Events(context.Background(), "1-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if query != "after=1-1&limit=5" || page.Next != "1-2" {
		t.Fatalf("query = %q, next = %q", query, page.Next)
	}
}

func TestPortfolioMarkdown(t *testing.T) {
	p := domain.Portfolio{
		TotalAccountValue: decimal.RequireFromString("1234.5"),
		AvailableCash:     decimal.RequireFromString("234.5"),
		Positions: []domain.Position{{
			InstrumentID: 47,
			Ticker:       "GGAL",
			Name:         "Galicia | Banco",
			Quantity:     decimal.NewFromInt(10),
			TotalValue:   decimal.NewFromInt(800),
			CurrentValue: decimal.NewFromInt(1000),
			TotalReturn:  decimal.NewFromInt(25),
		}},
	}
	md := PortfolioMarkdown(1, p, "USD")
	for _, want := range []string{"$1,234.50", "$234.50", "| GGAL |", `Galicia \| Banco`, "+25.00%"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	empty := PortfolioMarkdown(2, domain.Portfolio{}, "USD")
	if !strings.Contains(empty, "No open positions") {
		t.Fatalf("empty portfolio markdown:\n%s", empty)
	}
}

func TestPortfolioCommand(t *testing.T) {
	out, _ := useServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/portfolio/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, domain.Portfolio{AvailableCash: decimal.NewFromInt(50)})
	})

	if status := run(t, &portfolioCmd{}, "7"); status != subcommands.ExitSuccess {
		t.Fatalf("status = %v", status)
	}
	var p domain.Portfolio
	if err := json.Unmarshal(out.Bytes(), &p); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !p.AvailableCash.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("cash = %s", p.AvailableCash)
	}
}

func TestCommandUsageErrors(t *testing.T) {
	_, errOut := useServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	})

	tests := []struct {
		name string
		cmd  subcommands.Command
		args []string
	}{
		{"portfolio without id", &portfolioCmd{}, nil},
		{"order with bad id", &orderCmd{}, []string{"abc"}},
		{"cancel with zero id", &cancelCmd{}, []string{"0"}},
		{"submit bad side", &submitCmd{}, []string{"-side", "HOLD", "-quantity", "1"}},
		{"submit bad quantity", &submitCmd{}, []string{"-side", "BUY", "-quantity", "ten"}},
		{"archive without mode", &archiveCmd{}, nil},
		{"archive bad month", &archiveCmd{}, []string{"-month", "2024/12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errOut.Reset()
			if status := run(t, tt.cmd, tt.args...); status != subcommands.ExitUsageError {
				t.Fatalf("status = %v, want usage error", status)
			}
			if errOut.Len() == 0 {
				t.Fatal("expected a message on stderr")
			}
		})
	}
}

func TestSubmitCommandFailure(t *testing.T) {
	_, errOut := useServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"error": "Instrument with ID 99 not found"})
	})

	status := run(t, &submitCmd{}, "-user", "1", "-instrument", "99", "-side", "buy", "-quantity", "1")
	if status != subcommands.ExitFailure {
		t.Fatalf("status = %v, want failure", status)
	}
	if !strings.Contains(errOut.String(), "Instrument with ID 99 not found") {
		t.Fatalf("stderr = %q", errOut)
	}
}

type fakeArchive struct {
	months []time.Time
	orders []domain.OrderView
}

func (f *fakeArchive) ReadOrders(_ context.Context, month time.Time) ([]domain.OrderView, error) {
	if len(f.months) == 0 || !f.months[0].Equal(month) {
		return nil, domain.ErrNotFound
	}
	return f.orders, nil
}

func (f *fakeArchive) ListMonths(context.Context) ([]time.Time, error) {
	return f.months, nil
}

func TestArchiveCommand(t *testing.T) {
	out, _ := useServer(t, func(w http.ResponseWriter, r *http.Request) {})
	dec := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeArchive{
		months: []time.Time{dec},
		orders: []domain.OrderView{{ID: 1, Status: domain.OrderStatusFilled}, {ID: 2, Status: domain.OrderStatusCancelled}},
	}
	prev := openArchive
	openArchive = func(context.Context, *config.Config) (archiveSource, error) { return src, nil }
	t.Cleanup(func() { openArchive = prev })

	if status := run(t, &archiveCmd{}, "-list"); status != subcommands.ExitSuccess {
		t.Fatalf("list status = %v", status)
	}
	var months []string
	if err := json.Unmarshal(out.Bytes(), &months); err != nil || len(months) != 1 || months[0] != "2024-12" {
		t.Fatalf("months = %v, %v", months, err)
	}

	out.Reset()
	if status := run(t, &archiveCmd{}, "-month", "2024-12"); status != subcommands.ExitSuccess {
		t.Fatalf("month status = %v", status)
	}
	var orders []domain.OrderView
	if err := json.Unmarshal(out.Bytes(), &orders); err != nil || len(orders) != 2 {
		t.Fatalf("orders = %v, %v", orders, err)
	}

	if status := run(t, &archiveCmd{}, "-month", "2024-11"); status != subcommands.ExitFailure {
		t.Fatalf("missing month status = %v, want failure", status)
	}
}

func TestArchiveMarkdown(t *testing.T) {
	md := ArchiveMarkdown(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), []domain.OrderView{{
		ID:       5,
		Side:     domain.OrderSideSell,
		Type:     domain.OrderKindLimit,
		Quantity: decimal.NewFromInt(3),
		Price:    decimal.RequireFromString("10.5"),
		Status:   domain.OrderStatusNew,
	}})
	if !strings.Contains(md, "2024-12") || !strings.Contains(md, "| 5 |") || !strings.Contains(md, "10.50") {
		t.Fatalf("markdown:\n%s", md)
	}
}
