package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers wash-sale routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/washsale", func(r chi.Router) {
		r.Get("/restrictions", h.HandleListRestrictions)
		r.Get("/restrictions/{ticker}", h.HandleGetRestriction)
		r.Post("/sweep", h.HandleSweep)
	})
}
