// Package handlers provides HTTP handlers for group snapshot history.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ballastd/ballast/internal/modules/history"
	"github.com/ballastd/ballast/internal/modules/rebalance"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles history HTTP requests
type Handler struct {
	service *history.Service
	log     zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(service *history.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "history").Logger(),
	}
}

// HandleGetSeries handles GET /api/history/{groupID}?days=90
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		days = parsed
	}

	snapshots, err := h.service.Series(groupID, days, time.Now())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snapshots == nil {
		snapshots = []history.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_id":  groupID,
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// HandleGetLatest handles GET /api/history/{groupID}/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	snap, err := h.service.Latest(groupID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "No snapshots for group")
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

// HandleCapture handles POST /api/history/{groupID}/capture, taking an
// on-demand snapshot outside the daily schedule
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	snap, err := h.service.Capture(groupID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, rebalance.ErrGroupNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, rebalance.ErrNoModelAssigned):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
