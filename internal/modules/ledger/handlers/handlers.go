// Package handlers provides HTTP handlers for the transaction ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ballastd/ballast/internal/modules/ledger"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleRecordTrade handles POST /api/ledger/trades
func (h *Handler) HandleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req ledger.TradeRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.RecordTrade(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// HandleListTrades handles GET /api/ledger/trades
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TransactionFilter{
		AccountID: r.URL.Query().Get("account"),
		Ticker:    r.URL.Query().Get("ticker"),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		// Accepts either a Unix timestamp or a YYYY-MM-DD date.
		ts, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			ts = utils.DateToUnix(since)
		}
		if ts == 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid since value, expected Unix timestamp or YYYY-MM-DD")
			return
		}
		filter.Since = ts
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}

	txs, err := h.service.ListTransactions(filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// HandleGetTrade handles GET /api/ledger/trades/{id}
func (h *Handler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	tx, err := h.service.GetTransaction(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tx == nil {
		h.writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
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
