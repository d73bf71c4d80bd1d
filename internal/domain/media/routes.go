package media

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the media endpoints. Every route requires an
// authenticated principal.
func RegisterRoutes(r chi.Router, h *Handler, auth func(http.Handler) http.Handler) {
	r.Route("/images", func(r chi.Router) {
		r.Use(auth)

		r.Post("/upload", h.Upload)
		r.Get("/", h.List)
		r.Get("/config", h.Config)
		r.Delete("/", h.DeleteBlobs)

		r.Get("/{id}", h.Serve)
		r.Head("/{id}", h.Serve)
		r.Delete("/{id}", h.DeleteByID)
		r.Get("/{id}/thumbnail/{size}", h.ServeThumbnail)
		r.Head("/{id}/thumbnail/{size}", h.ServeThumbnail)
	})
}
