package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	for name, check := range map[string]KeyCheck{
		"static": StaticKey("secret"),
		"hashed": HashedKey(string(hash)),
	} {
		t.Run(name, func(t *testing.T) {
			testAuth(t, Auth(check, "/api/health")(ok))
		})
	}
}

func testAuth(t *testing.T, h http.Handler) {
	t.Helper()

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing", "/api/orders/1", nil, http.StatusUnauthorized},
		{"wrong", "/api/orders/1", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"api key", "/api/orders/1", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", "/api/orders/1", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"public", "/api/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		for k, v := range tt.header {
			req.Header.Set(k, v)
		}
		// Twice, so the hashed check is exercised on its cached path.
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
			}
		}
	}
}

func TestAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth(StaticKey(""))(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

type countingLimiter struct {
	n   int
	err error
}

func (c *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.n++
	return c.n <= 1, nil
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(&countingLimiter{}, 1, time.Second, logger)(ok)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}

	rec := httptest.NewRecorder()
	RateLimit(&countingLimiter{err: errors.New("redis down")}, 1, time.Second, logger)(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter error should fail open, got %d", rec.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := extractClientIP(req); got != "10.0.0.1" {
		t.Fatalf("remote addr ip = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := extractClientIP(req); got != "203.0.113.7" {
		t.Fatalf("forwarded ip = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders/submit", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)
	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/1", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow origin = %q, want none", got)
	}
}
