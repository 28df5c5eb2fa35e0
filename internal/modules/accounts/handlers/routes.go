package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers account and group routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleListAccounts)
		r.Post("/", h.HandleSaveAccount)
		r.Get("/{id}", h.HandleGetAccount)
		r.Delete("/{id}", h.HandleDeleteAccount)
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.HandleListGroups)
		r.Post("/", h.HandleSaveGroup)
		r.Get("/{id}", h.HandleGetGroup)
		r.Delete("/{id}", h.HandleDeleteGroup)
		r.Put("/{id}/model", h.HandleAssignModel)
	})
}
