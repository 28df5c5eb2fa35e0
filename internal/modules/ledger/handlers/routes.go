package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers ledger routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/trades", h.HandleRecordTrade)
		r.Get("/trades", h.HandleListTrades)
		r.Get("/trades/{id}", h.HandleGetTrade)
	})
}
