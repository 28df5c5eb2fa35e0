// Package handlers provides HTTP handlers for tax-lot holdings and cash.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ballastd/ballast/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetAccountLots handles GET /api/portfolio/accounts/{accountID}/lots
func (h *Handler) HandleGetAccountLots(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	lots, err := h.service.GetAccountLots(accountID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"lots":       lots,
		"count":      len(lots),
	})
}

// HandleAddLot handles POST /api/portfolio/lots
func (h *Handler) HandleAddLot(w http.ResponseWriter, r *http.Request) {
	var req portfolio.LotCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lot, err := h.service.AddLot(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, lot)
}

// HandleRemoveLot handles DELETE /api/portfolio/lots/{id}
func (h *Handler) HandleRemoveLot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid lot ID")
		return
	}

	if err := h.service.RemoveLot(id); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// HandleGetCash handles GET /api/portfolio/accounts/{accountID}/cash
func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	balance, err := h.service.GetCashBalance(accountID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"cash":       balance,
	})
}

// HandleDeposit handles POST /api/portfolio/accounts/{accountID}/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleCashMove(w, r, h.service.Deposit)
}

// HandleWithdraw handles POST /api/portfolio/accounts/{accountID}/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handleCashMove(w, r, h.service.Withdraw)
}

func (h *Handler) handleCashMove(w http.ResponseWriter, r *http.Request, move func(string, portfolio.CashUpdate) (float64, error)) {
	accountID := chi.URLParam(r, "accountID")

	var req portfolio.CashUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := move(accountID, req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"cash":       balance,
	})
}

// HandleGroupValuation handles GET /api/portfolio/groups/{groupID}/valuation
func (h *Handler) HandleGroupValuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.GetGroupValuation(chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, valuation)
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
