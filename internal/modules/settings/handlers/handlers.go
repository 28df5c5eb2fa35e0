// Package handlers provides HTTP handlers for system settings management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service      *settings.Service
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		service:      service,
		eventManager: eventManager,
		log:          log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		h.writeError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}

	h.writeJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Key is required")
		return
	}

	value, err := h.service.Get(key)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]interface{}{
		"key":   key,
		"value": value,
	}
	if desc, ok := settings.SettingDescriptions[key]; ok {
		response["description"] = desc
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Key is required")
		return
	}

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Set(key, update.Value); err != nil {
		h.log.Error().
			Err(err).
			Str("key", key).
			Interface("value", update.Value).
			Msg("Failed to update setting")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.eventManager != nil {
		h.eventManager.Emit(events.SettingsChanged, "settings", map[string]interface{}{
			"key":   key,
			"value": update.Value,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{key: update.Value})
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
