package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/treegesture/internal/store"
)

// DefaultEventLimit is used when the request names no limit.
const DefaultEventLimit = 50

// EventSource reads the session history.
type EventSource interface {
	Recent(limit int) ([]*store.Event, error)
}

// EventsHandler serves GET /api/events?limit=N, newest first.
type EventsHandler struct {
	events EventSource
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(events EventSource) *EventsHandler {
	return &EventsHandler{events: events}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.events.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
