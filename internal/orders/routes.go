package orders

import "github.com/go-chi/chi/v5"

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Place)
	r.Get("/{id}", h.Show)
	r.Put("/{id}/discard", h.Discard)
	r.Delete("/{id}", h.Delete)
}
