package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// APIError is a non-2xx response from the settlement API.
type APIError struct {
	Status   int
	Message  string
	Problems []string
}

func (e *APIError) Error() string {
	switch {
	case len(e.Problems) > 0:
		return fmt.Sprintf("api: %d: %s", e.Status, strings.Join(e.Problems, "; "))
	case e.Message != "":
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("api: %d", e.Status)
	}
}

// Client talks to a running settled server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a Client for baseURL. An empty apiKey sends no
// credentials.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SubmitOrder is the body of POST /api/orders/submit. Price is optional for
// MARKET and cash orders.
type SubmitOrder struct {
	UserID       int64            `json:"userId"`
	InstrumentID int64            `json:"instrumentId"`
	Side         domain.OrderSide `json:"side"`
	Type         domain.OrderKind `json:"type"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Price        *decimal.Decimal `json:"price,omitempty"`
}

// Submit places an order.
func (c *Client) Submit(ctx context.Context, req SubmitOrder) (domain.OrderView, error) {
	var view domain.OrderView
	err := c.do(ctx, http.MethodPost, "/api/orders/submit", req, &view)
	return view, err
}

// Cancel cancels a NEW order.
func (c *Client) Cancel(ctx context.Context, orderID int64) (domain.OrderView, error) {
	var view domain.OrderView
	err := c.do(ctx, http.MethodPost, "/api/orders/cancel", map[string]int64{"orderId": orderID}, &view)
	return view, err
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, orderID int64) (domain.OrderView, error) {
	var view domain.OrderView
	err := c.do(ctx, http.MethodGet, "/api/orders/"+strconv.FormatInt(orderID, 10), nil, &view)
	return view, err
}

// Portfolio fetches the valuation of userID.
func (c *Client) Portfolio(ctx context.Context, userID int64) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := c.do(ctx, http.MethodGet, "/api/portfolio/"+strconv.FormatInt(userID, 10), nil, &p)
	return p, err
}

// EventPage is one page of the order event stream.
type EventPage struct {
	Events []StreamedEvent `json:"events"`
	Next   string          `json:"next"`
}

// StreamedEvent pairs a stream id with its decoded order event.
type StreamedEvent struct {
	ID    string            `json:"id"`
	Event domain.OrderEvent `json:"event"`
}

// Events reads up to limit order events after the stream id after.
func (c *Client) Events(ctx context.Context, after string, limit int) (EventPage, error) {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/events/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page EventPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cli: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("cli: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cli: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("cli: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error  string   `json:"error"`
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Problems = payload.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cli: decode response: %w", err)
	}
	return nil
}
