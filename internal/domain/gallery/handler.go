package gallery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
	"github.com/innkeep/innkeep-api/internal/pkg/response"
	"github.com/innkeep/innkeep-api/internal/pkg/validator"
)

// Handler exposes the gallery HTTP surface.
type Handler struct {
	svc *Service
}

// NewHandler creates gallery handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /galleries/{parentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	principal := middleware.GetPrincipal(r.Context())

	g, err := h.svc.Get(r.Context(), principal, parentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrGalleryNotFound):
			response.NotFound(w, "Gallery not found")
		case errors.Is(err, ErrAccessDenied):
			response.Forbidden(w, "Access denied")
		default:
			logger.FromContext(r.Context()).Error().Err(err).Str("parent_id", parentID).Msg("Failed to load gallery")
			response.InternalError(w)
		}
		return
	}
	response.OK(w, ResponseFromEntity(g))
}

// Reorder handles PUT /galleries/{parentID}/order. An invalid proposal is
// rejected with every violation listed; nothing is written on rejection.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	g, violations, err := h.svc.Reorder(r.Context(), principal, parentID, req.ImageIDs)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrder):
			details := make(map[string]string, len(violations))
			for _, v := range violations {
				details[v.ImageID] = v.Kind
			}
			response.ErrorWithDetails(w, http.StatusBadRequest, "INVALID_ORDER",
				"Proposed order does not match gallery contents", details)
		case errors.Is(err, ErrGalleryNotFound):
			response.NotFound(w, "Gallery not found")
		case errors.Is(err, ErrAccessDenied):
			response.Forbidden(w, "Access denied")
		default:
			logger.FromContext(r.Context()).Error().Err(err).Str("parent_id", parentID).Msg("Failed to reorder gallery")
			response.InternalError(w)
		}
		return
	}
	response.OK(w, ResponseFromEntity(g))
}
