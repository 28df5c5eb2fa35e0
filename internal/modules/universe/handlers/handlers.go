// Package handlers provides HTTP handlers for the securities universe.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles universe HTTP requests
type Handler struct {
	service *universe.Service
	log     zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(service *universe.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// HandleListSecurities handles GET /api/universe/securities
func (h *Handler) HandleListSecurities(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	securities, err := h.service.ListSecurities(activeOnly)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"securities": securities,
		"count":      len(securities),
	})
}

// HandleGetSecurity handles GET /api/universe/securities/{ticker}
func (h *Handler) HandleGetSecurity(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	sec, err := h.service.GetSecurity(ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sec == nil {
		h.writeError(w, http.StatusNotFound, "Security not found")
		return
	}

	h.writeJSON(w, http.StatusOK, sec)
}

// HandleUpsertSecurity handles POST /api/universe/securities
func (h *Handler) HandleUpsertSecurity(w http.ResponseWriter, r *http.Request) {
	var req universe.SecurityUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sec, err := h.service.UpsertSecurity(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, sec)
}

// HandleSetActive handles PUT /api/universe/securities/{ticker}/active
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetActive(ticker, req.Active); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"active": req.Active,
	})
}

// HandleDeleteSecurity handles DELETE /api/universe/securities/{ticker}
func (h *Handler) HandleDeleteSecurity(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if err := h.service.DeleteSecurity(ticker); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": ticker,
	})
}

// HandleGetPrices handles GET /api/universe/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.GetPrices()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": prices,
		"count":  len(prices),
	})
}

// HandleUpdatePrice handles PUT /api/universe/prices/{ticker}
func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var req universe.PriceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdatePrice(ticker, req.Price); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"price":  req.Price,
	})
}

// HandleUpdatePrices handles PUT /api/universe/prices (bulk push)
func (h *Handler) HandleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req universe.BulkPriceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Prices) == 0 {
		h.writeError(w, http.StatusBadRequest, "No prices provided")
		return
	}

	updated, err := h.service.UpdatePrices(req.Prices)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
		"skipped": len(req.Prices) - updated,
	})
}

// HandleGetStalePrices handles GET /api/universe/prices/stale?hours=48
func (h *Handler) HandleGetStalePrices(w http.ResponseWriter, r *http.Request) {
	hours := 48
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if parsed, err := strconv.Atoi(hoursStr); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	stale, err := h.service.GetStalePrices(time.Duration(hours) * time.Hour)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"securities": stale,
		"count":      len(stale),
		"max_hours":  hours,
	})
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
