package gallery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the gallery endpoints. Every route requires an
// authenticated principal.
func RegisterRoutes(r chi.Router, h *Handler, auth func(http.Handler) http.Handler) {
	r.Route("/galleries", func(r chi.Router) {
		r.Use(auth)

		r.Get("/{parentID}", h.Get)
		r.Put("/{parentID}/order", h.Reorder)
	})
}
