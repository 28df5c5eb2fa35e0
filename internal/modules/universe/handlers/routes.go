package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers universe routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Route("/securities", func(r chi.Router) {
			r.Get("/", h.HandleListSecurities)
			r.Post("/", h.HandleUpsertSecurity)
			r.Get("/{ticker}", h.HandleGetSecurity)
			r.Put("/{ticker}/active", h.HandleSetActive)
			r.Delete("/{ticker}", h.HandleDeleteSecurity)
		})
		r.Route("/prices", func(r chi.Router) {
			r.Get("/", h.HandleGetPrices)
			r.Put("/", h.HandleUpdatePrices)
			r.Get("/stale", h.HandleGetStalePrices)
			r.Put("/{ticker}", h.HandleUpdatePrice)
		})
	})
}
