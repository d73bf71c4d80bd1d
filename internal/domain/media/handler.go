package media

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
	"github.com/innkeep/innkeep-api/internal/pkg/response"
	"github.com/innkeep/innkeep-api/internal/pkg/validator"
)

// multipartMemoryLimit is the in-memory parse budget; larger parts spill to disk.
const multipartMemoryLimit = 32 << 20

// Handler exposes the media HTTP surface.
type Handler struct {
	svc      *Service
	delivery *Delivery
}

// NewHandler creates media handler
func NewHandler(svc *Service, delivery *Delivery) *Handler {
	return &Handler{svc: svc, delivery: delivery}
}

// Upload handles POST /images/upload. Multipart form with one or more "files"
// parts; "thumbnails=false" skips rendition generation. Responds 200 when
// every file succeeded, 207 on partial success, 400 when none did.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	withThumbnails := r.FormValue("thumbnails") != "false"

	files := make([]UploadFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(w, "Failed to read uploaded file")
			return
		}
		defer f.Close()
		files = append(files, UploadFile{Filename: fh.Filename, Reader: f})
	}

	result, err := h.svc.Upload(r.Context(), principal, files, withThumbnails)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFiles):
			response.BadRequest(w, "No files provided")
		case errors.Is(err, ErrTooManyFiles):
			response.BadRequest(w, "Too many files in one request")
		case errors.Is(err, ErrStorageUnconfigured):
			response.Error(w, http.StatusInternalServerError, "STORAGE_UNCONFIGURED", "No storage backend configured")
		case errors.Is(err, ErrAllFilesFailed):
			response.JSON(w, http.StatusBadRequest, result)
		default:
			logger.FromContext(r.Context()).Error().Err(err).Msg("Upload failed")
			response.InternalError(w)
		}
		return
	}

	if len(result.Errors) > 0 {
		response.MultiStatus(w, result)
		return
	}
	response.OK(w, result)
}

// List handles GET /images. Optional filters: uploader_id, from/to (RFC 3339),
// and tenant_id for elevated principals.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var filter ListFilter
	if v := r.URL.Query().Get("uploader_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid uploader_id")
			return
		}
		filter.UploaderID = &id
	}
	if from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to"); from != "" || to != "" {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			response.BadRequest(w, "Invalid from timestamp")
			return
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			response.BadRequest(w, "Invalid to timestamp")
			return
		}
		filter.From, filter.To = &start, &end
	}

	images, err := h.svc.List(r.Context(), principal, r.URL.Query().Get("tenant_id"), filter)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			response.Forbidden(w, "Access denied")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to list images")
		response.InternalError(w)
		return
	}

	out := make([]*ImageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, ImageResponseFromEntity(img))
	}
	response.OK(w, out)
}

// Config handles GET /images/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.svc.ConfigInfo())
}

// Serve handles GET /images/{id}: the full-size rendition with content
// negotiation and cache validation.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	img, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.delivery.ServePrimary(w, r, img)
}

// ServeThumbnail handles GET /images/{id}/thumbnail/{size}.
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	size, err := NormalizeSize(chi.URLParam(r, "size"))
	if err != nil {
		response.BadRequest(w, "Invalid thumbnail size")
		return
	}

	img, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.delivery.ServeThumbnail(w, r, img, size)
}

// resolve parses the id, loads the record and authorizes the caller. A
// missing record is 404; a record in another tenant is a generic 403.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*Image, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(w, "Invalid image id")
		return nil, false
	}

	principal := middleware.GetPrincipal(r.Context())
	img, err := h.svc.GetForRead(r.Context(), principal, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrImageNotFound):
			response.NotFound(w, "Image not found")
		case errors.Is(err, ErrAccessDenied):
			response.Forbidden(w, "Access denied")
		default:
			logger.FromContext(r.Context()).Error().Err(err).Str("image_id", id).Msg("Failed to load image")
			response.InternalError(w)
		}
		return nil, false
	}
	return img, true
}

// DeleteByID handles DELETE /images/{id}: removes the record and schedules
// blob cleanup.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(w, "Invalid image id")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	if err := h.svc.DeleteImage(r.Context(), principal, id); err != nil {
		switch {
		case errors.Is(err, ErrImageNotFound):
			response.NotFound(w, "Image not found")
		case errors.Is(err, ErrAccessDenied):
			response.Forbidden(w, "Access denied")
		default:
			logger.FromContext(r.Context()).Error().Err(err).Str("image_id", id).Msg("Failed to delete image")
			response.InternalError(w)
		}
		return
	}
	response.NoContent(w)
}

// DeleteBlobs handles DELETE /images: batch removal of blob URLs with
// per-URL outcomes.
func (h *Handler) DeleteBlobs(w http.ResponseWriter, r *http.Request) {
	var req DeleteBlobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	result, err := h.svc.DeleteBlobs(r.Context(), principal, req.URLs)
	if err != nil {
		if errors.Is(err, ErrStorageUnconfigured) {
			response.Error(w, http.StatusInternalServerError, "STORAGE_UNCONFIGURED", "No storage backend configured")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Batch blob deletion failed")
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}
