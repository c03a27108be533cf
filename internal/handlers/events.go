package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"reviewhub-console/internal/events"
	"reviewhub-console/internal/models"
)

// EventsHandler serves the store change feed
type EventsHandler struct {
	eventQueue *events.EventQueue
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventQueue *events.EventQueue, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		eventQueue: eventQueue,
		logger:     logger,
	}
}

// GetEvents handles GET /v1/events?offset=&limit=&wait=
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var offset int64
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.ParseInt(offsetStr, 10, 64)
		if err != nil || parsed < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "events_error", "invalid offset parameter", nil)
			return
		}
		offset = parsed
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 1000 {
			limit = parsedLimit
		}
	}

	waitSeconds := 0
	if waitStr := r.URL.Query().Get("wait"); waitStr != "" {
		if parsedWait, err := strconv.Atoi(waitStr); err == nil && parsedWait >= 0 && parsedWait <= 60 {
			waitSeconds = parsedWait
		}
	}

	h.logger.Debug("Events request received",
		"offset", offset,
		"limit", limit,
		"wait", waitSeconds,
		"remote_addr", r.RemoteAddr,
	)

	evs, nextOffset, hasMore := h.eventQueue.GetEvents(offset, limit)

	// Long poll when the caller is already at the head of the feed
	if len(evs) == 0 && waitSeconds > 0 {
		waitChan := h.eventQueue.WaitForEvents(offset, time.Duration(waitSeconds)*time.Second)

		select {
		case <-waitChan:
			evs, nextOffset, hasMore = h.eventQueue.GetEvents(offset, limit)
		case <-r.Context().Done():
			h.logger.Debug("Client disconnected during long polling", "offset", offset)
			return
		}
	}

	if evs == nil {
		evs = []models.Event{}
	}

	writeJSONResponse(w, http.StatusOK, models.EventsResponse{
		Events:     evs,
		NextOffset: nextOffset,
		HasMore:    hasMore,
		Count:      len(evs),
	})
}
