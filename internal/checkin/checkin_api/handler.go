package checkin_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/utils"
)

const maxScanBody = 1 << 16

// Scanner is satisfied by checkin.Service.
type Scanner interface {
	Scan(ctx context.Context, req models.ScanRequest) (models.Decision, error)
}

// StatsReader is satisfied by analytics.Service.
type StatsReader interface {
	GetStats(ctx context.Context, eventID int64) (*models.EventStats, error)
	GetRecentScans(ctx context.Context, eventID int64, limit int) ([]models.ScanRecord, error)
}

type Handler struct {
	Scanner Scanner
	Stats   StatsReader
	Logger  *logger.Logger
}

func NewHandler(scanner Scanner, stats StatsReader, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Scanner: scanner, Stats: stats, Logger: log}
}

// RegisterRoutes adds the check-in endpoints to r, which is expected to be
// mounted at /api/checkin.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/scan", h.Scan)
	r.Get("/events/{eventId}/stats", h.GetStats)
	r.Get("/events/{eventId}/recent", h.GetRecentScans)
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	body := http.MaxBytesReader(w, r.Body, maxScanBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.Logger.Debug("API", fmt.Sprintf("Scan: invalid body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid scan request", err.Error()))
		return
	}
	if req.EventID <= 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid scan request", "event_id is required"))
		return
	}
	if strings.TrimSpace(req.GuardID) == "" {
		req.GuardID = guardFromRequest(r)
	}
	req.Origin = clientIP(r)

	d, err := h.Scanner.Scan(r.Context(), req)
	switch {
	case errors.Is(err, checkin.ErrStore):
		h.writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Scan could not be recorded, please scan again", "store unavailable"))
		return
	case errors.Is(err, checkin.ErrMissingEvent):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid scan request", err.Error()))
		return
	case errors.Is(err, context.Canceled):
		// Client went away while waiting for the code lock.
		h.Logger.Debug("API", fmt.Sprintf("Scan of %q abandoned by client", req.Code))
		return
	case err != nil:
		h.Logger.Error("API", fmt.Sprintf("Scan: unexpected error: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Scan failed", "internal error"))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.APIResponse{
		Success:   d.Admitted(),
		Message:   d.Metadata.Message,
		Data:      d,
		Timestamp: time.Now(),
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	stats, err := h.Stats.GetStats(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStats: event %d: %v", eventID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load stats", "internal error"))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Stats retrieved", stats))
}

func (h *Handler) GetRecentScans(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	// Out of range limits are clamped by the aggregator.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.Stats.GetRecentScans(r.Context(), eventID, limit)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetRecentScans: event %d: %v", eventID, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load recent scans", "internal error"))
		return
	}
	if records == nil {
		records = []models.ScanRecord{}
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Recent scans retrieved", records))
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	eventID, err := parseEventID(chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return 0, false
	}
	return eventID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func parseEventID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("event id %q must be a positive integer", raw)
	}
	return id, nil
}

// guardFromRequest names the guard from the verified identity, falling back
// to the unverified bearer token when no verifier is installed.
func guardFromRequest(r *http.Request) string {
	if guard := auth.GuardID(r.Context()); guard != "" {
		return guard
	}
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return ""
	}
	guard, _ := auth.GuardFromJWT(token)
	return guard
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
