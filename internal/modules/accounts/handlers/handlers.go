// Package handlers provides HTTP handlers for accounts and rebalancing groups.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles account and group HTTP requests
type Handler struct {
	service *accounts.Service
	log     zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(service *accounts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "accounts").Logger(),
	}
}

// HandleListAccounts handles GET /api/accounts
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAccounts()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": list,
		"count":    len(list),
	})
}

// HandleGetAccount handles GET /api/accounts/{id}
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if account == nil {
		h.writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// HandleSaveAccount handles POST /api/accounts
func (h *Handler) HandleSaveAccount(w http.ResponseWriter, r *http.Request) {
	var req accounts.AccountUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.SaveAccount(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// HandleDeleteAccount handles DELETE /api/accounts/{id}
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteAccount(id); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// HandleListGroups handles GET /api/groups
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListGroups()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": list,
		"count":  len(list),
	})
}

// HandleGetGroup handles GET /api/groups/{id}
func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if group == nil {
		h.writeError(w, http.StatusNotFound, "Group not found")
		return
	}

	h.writeJSON(w, http.StatusOK, group)
}

// HandleSaveGroup handles POST /api/groups
func (h *Handler) HandleSaveGroup(w http.ResponseWriter, r *http.Request) {
	var req accounts.GroupUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.service.SaveGroup(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, group)
}

// HandleDeleteGroup handles DELETE /api/groups/{id}
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteGroup(id); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// HandleAssignModel handles PUT /api/groups/{id}/model
func (h *Handler) HandleAssignModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelID int64 `json:"model_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.service.AssignModel(chi.URLParam(r, "id"), req.ModelID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, group)
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
