package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers history routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/{groupID}", h.HandleGetSeries)
		r.Get("/{groupID}/latest", h.HandleGetLatest)
		r.Post("/{groupID}/capture", h.HandleCapture)
	})
}
