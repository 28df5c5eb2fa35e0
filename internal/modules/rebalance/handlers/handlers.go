// Package handlers provides HTTP handlers for rebalance runs and proposals.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ballastd/ballast/internal/modules/rebalance"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles rebalance HTTP requests
type Handler struct {
	service *rebalance.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalance handler
func NewHandler(service *rebalance.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalance").Logger(),
	}
}

// HandleRebalance handles POST /api/rebalance/{groupID}. The proposal is
// persisted as well as returned, so the caller can pull it back later by ID.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	var req rebalance.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	proposal, err := h.service.Rebalance(groupID, req)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proposal)
}

// HandleListMethods handles GET /api/rebalance/methods
func (h *Handler) HandleListMethods(w http.ResponseWriter, r *http.Request) {
	methods := rebalance.Methods()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"methods": methods,
		"count":   len(methods),
	})
}

// HandleGetProposal handles GET /api/rebalance/proposals/{id}
func (h *Handler) HandleGetProposal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	proposal, err := h.service.GetProposal(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if proposal == nil {
		h.writeError(w, http.StatusNotFound, "Proposal not found")
		return
	}

	h.writeJSON(w, http.StatusOK, proposal)
}

// HandleListProposals handles GET /api/rebalance/{groupID}/proposals
func (h *Handler) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	proposals, err := h.service.ListProposals(groupID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_id":  groupID,
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// HandleDrift handles GET /api/rebalance/{groupID}/drift
func (h *Handler) HandleDrift(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	report, err := h.service.Drift(groupID)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// writeRunError maps the service's configuration errors onto statuses: an
// unknown group is 404, a group without a usable model is 422, a bad method
// is 400, anything else is a 500.
func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rebalance.ErrGroupNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rebalance.ErrNoModelAssigned):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, rebalance.ErrUnknownMethod):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
