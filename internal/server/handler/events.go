package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// StreamReader replays durable bus streams.
type StreamReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// EventHandler lets clients catch up on order events they missed while
// disconnected from the WebSocket.
type EventHandler struct {
	streams StreamReader
	logger  *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(streams StreamReader, logger *slog.Logger) *EventHandler {
	return &EventHandler{streams: streams, logger: logger}
}

type eventEntry struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

type listEventsResponse struct {
	Events []eventEntry `json:"events"`
	Next   string       `json:"next"`
}

// ListOrderEvents returns order events after the given stream id.
// GET /api/events/orders?after=0&limit=100
func (h *EventHandler) ListOrderEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after := q.Get("after")
	if after == "" {
		after = "0"
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeValidation(w, []string{"limit: must be a positive integer"})
			return
		}
		limit = min(n, 1000)
	}

	msgs, err := h.streams.StreamRead(r.Context(), domain.StreamOrders, after, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "list order events", err)
		return
	}

	resp := listEventsResponse{Events: make([]eventEntry, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		resp.Events = append(resp.Events, eventEntry{ID: m.ID, Event: json.RawMessage(m.Payload)})
		resp.Next = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
