package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers rebalance routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalance", func(r chi.Router) {
		r.Get("/methods", h.HandleListMethods)
		r.Get("/proposals/{id}", h.HandleGetProposal)
		r.Post("/{groupID}", h.HandleRebalance)
		r.Get("/{groupID}/proposals", h.HandleListProposals)
		r.Get("/{groupID}/drift", h.HandleDrift)
	})
}
