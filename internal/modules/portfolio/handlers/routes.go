package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/lots", h.HandleAddLot)
		r.Delete("/lots/{id}", h.HandleRemoveLot)
		r.Get("/accounts/{accountID}/lots", h.HandleGetAccountLots)
		r.Get("/accounts/{accountID}/cash", h.HandleGetCash)
		r.Post("/accounts/{accountID}/deposit", h.HandleDeposit)
		r.Post("/accounts/{accountID}/withdraw", h.HandleWithdraw)
		r.Get("/groups/{groupID}/valuation", h.HandleGroupValuation)
	})
}
