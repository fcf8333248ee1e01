package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/sse"
	"ms-checkin/internal/utils"
)

const defaultHeartbeat = 25 * time.Second

// Subscriber is satisfied by sse.ScanEventEmitter.
type Subscriber interface {
	Subscribe(ctx context.Context, eventID int64) <-chan sse.Message
}

// SSEHandler streams live scan activity for one event.
type SSEHandler struct {
	Emitter   Subscriber
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func NewSSEHandler(emitter Subscriber, log *logger.Logger) *SSEHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SSEHandler{Emitter: emitter, Logger: log, Heartbeat: defaultHeartbeat}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/stream", h.HandleEventStream)
}

func (h *SSEHandler) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "eventId"))
	if err != nil {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)

	// The subscription ends when the client disconnects.
	ctx := r.Context()
	messages := h.Emitter.Subscribe(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":%d}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to check-in stream for event %d", eventID))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s: %v", msg.Type, err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from check-in stream for event %d", eventID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
