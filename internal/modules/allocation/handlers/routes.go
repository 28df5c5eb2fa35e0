package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers allocation model routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.HandleListModels)
		r.Post("/", h.HandleCreateModel)
		r.Get("/{id}", h.HandleGetModel)
		r.Put("/{id}", h.HandleUpdateModel)
		r.Delete("/{id}", h.HandleDeleteModel)
	})
}
