// Package handlers provides HTTP handlers for wash-sale restrictions.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ballastd/ballast/internal/modules/washsale"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles wash-sale HTTP requests
type Handler struct {
	service *washsale.Service
	log     zerolog.Logger
}

// NewHandler creates a new wash-sale handler
func NewHandler(service *washsale.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "washsale").Logger(),
	}
}

// HandleListRestrictions handles GET /api/washsale/restrictions
func (h *Handler) HandleListRestrictions(w http.ResponseWriter, r *http.Request) {
	var restrictions []washsale.Restriction
	var err error

	if r.URL.Query().Get("all") == "true" {
		restrictions, err = h.service.AllRestrictions()
	} else {
		restrictions, err = h.service.ActiveRestrictions(time.Now())
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"restrictions": restrictions,
		"count":        len(restrictions),
	})
}

// HandleGetRestriction handles GET /api/washsale/restrictions/{ticker}
func (h *Handler) HandleGetRestriction(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	res, err := h.service.GetRestriction(ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil {
		h.writeError(w, http.StatusNotFound, "No restriction for ticker")
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// HandleSweep handles POST /api/washsale/sweep
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Sweep(time.Now())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
