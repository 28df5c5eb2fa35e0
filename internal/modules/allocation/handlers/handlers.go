// Package handlers provides HTTP handlers for allocation model management.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ballastd/ballast/internal/modules/allocation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles allocation model HTTP requests
type Handler struct {
	service *allocation.Service
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(service *allocation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// HandleListModels handles GET /api/models
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"count":  len(models),
	})
}

// HandleGetModel handles GET /api/models/{id}
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	model, err := h.service.GetModel(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if model == nil {
		h.writeError(w, http.StatusNotFound, "Model not found")
		return
	}

	h.writeJSON(w, http.StatusOK, model)
}

// HandleCreateModel handles POST /api/models
func (h *Handler) HandleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req allocation.ModelUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	model, err := h.service.CreateModel(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, model)
}

// HandleUpdateModel handles PUT /api/models/{id}
func (h *Handler) HandleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req allocation.ModelUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	model, err := h.service.UpdateModel(id, req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, model)
}

// HandleDeleteModel handles DELETE /api/models/{id}
func (h *Handler) HandleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteModel(id); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": id,
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid model ID")
		return 0, false
	}
	return id, true
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
