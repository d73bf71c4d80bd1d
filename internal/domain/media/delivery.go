package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
	"github.com/innkeep/innkeep-api/internal/pkg/storage"
)

// fetchTimeout bounds one blob read on the delivery path. A slow backend
// degrades to a placeholder instead of hanging the client.
const fetchTimeout = 10 * time.Second

const deliveryCSP = "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'"

// Placeholder dimensions for the primary rendition, where no canonical size applies.
const (
	placeholderWidth  = 800
	placeholderHeight = 600
)

// Delivery serves image bytes with content negotiation, cache validation
// and graceful degradation. Authorization always happens against metadata
// before any blob read.
type Delivery struct {
	svc         *Service
	store       storage.Storage
	proc        *imaging.Processor
	cacheMaxAge int
}

// NewDelivery creates the byte-serving layer.
func NewDelivery(svc *Service, store storage.Storage, proc *imaging.Processor, cacheMaxAge int) *Delivery {
	return &Delivery{svc: svc, store: store, proc: proc, cacheMaxAge: cacheMaxAge}
}

// ETag builds the cache validator for one rendition of a record. Records are
// immutable after upload, so id, size and upload time identify the bytes.
func ETag(img *Image, size string) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%s-%s-%d", img.ID, size, img.UploadedAt.Unix()))
}

// ServePrimary writes the full-size rendition, preferring WebP when the
// client advertises support and falling back to the legacy encoding.
func (d *Delivery) ServePrimary(w http.ResponseWriter, r *http.Request, img *Image) {
	url := img.FallbackURL
	mimeType := img.FallbackMimeType()
	if img.Optimized && acceptsWebP(r) {
		url = img.PrimaryURL
		mimeType = img.PrimaryMimeType()
	}

	if d.writeNotModified(w, r, img, SizeOriginal) {
		return
	}

	d.serveBlob(w, r, img, SizeOriginal, url, mimeType, placeholderWidth, placeholderHeight)
}

// ServeThumbnail writes one canonical thumbnail rendition. size must already
// be normalized. A record without thumbnails degrades to a placeholder at the
// rendition's dimensions.
func (d *Delivery) ServeThumbnail(w http.ResponseWriter, r *http.Request, img *Image, size string) {
	wantW, wantH := SizeDimensions(size)

	thumb, ok := img.Thumbnails[size]
	if !ok {
		d.servePlaceholder(w, r, wantW, wantH)
		return
	}

	if d.writeNotModified(w, r, img, size) {
		return
	}

	d.serveBlob(w, r, img, size, thumb.URL, imaging.MimeJPEG, thumb.Width, thumb.Height)
}

// writeNotModified evaluates If-None-Match and If-Modified-Since and writes a
// 304 with validators only when the client copy is current.
func (d *Delivery) writeNotModified(w http.ResponseWriter, r *http.Request, img *Image, size string) bool {
	etag := ETag(img, size)

	if match := r.Header.Get("If-None-Match"); match != "" {
		if !etagMatches(match, etag) {
			return false
		}
	} else if since := r.Header.Get("If-Modified-Since"); since != "" {
		t, err := http.ParseTime(since)
		if err != nil {
			return false
		}
		if img.UploadedAt.Truncate(time.Second).After(t) {
			return false
		}
	} else {
		return false
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", img.UploadedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusNotModified)
	return true
}

func (d *Delivery) serveBlob(w http.ResponseWriter, r *http.Request, img *Image, size, url, mimeType string, phWidth, phHeight int) {
	if d.store == nil {
		d.servePlaceholder(w, r, phWidth, phHeight)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()

	rc, err := d.store.Get(ctx, url)
	if err != nil {
		logger.FromContext(r.Context()).Warn().
			Err(err).
			Str("image_id", img.ID).
			Str("size", size).
			Msg("Blob fetch failed, serving placeholder")
		d.servePlaceholder(w, r, phWidth, phHeight)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logger.FromContext(r.Context()).Warn().
			Err(err).
			Str("image_id", img.ID).
			Str("size", size).
			Msg("Blob read failed, serving placeholder")
		d.servePlaceholder(w, r, phWidth, phHeight)
		return
	}

	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", d.cacheMaxAge))
	h.Set("ETag", ETag(img, size))
	h.Set("Last-Modified", img.UploadedAt.UTC().Format(http.TimeFormat))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", deliveryCSP)
	h.Set("Vary", "Accept")

	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

// servePlaceholder writes a synthesized substitute at the requested
// dimensions. Placeholders are never cacheable so recovery is immediate.
func (d *Delivery) servePlaceholder(w http.ResponseWriter, r *http.Request, width, height int) {
	ph, err := d.proc.Placeholder(width, height)
	if err != nil {
		http.Error(w, "image unavailable", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", ph.MimeType)
	h.Set("Content-Length", strconv.Itoa(len(ph.Data)))
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Placeholder", "1")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", deliveryCSP)

	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(ph.Data)
	}
}

// acceptsWebP reports whether the client's Accept header advertises WebP.
func acceptsWebP(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "image/webp")
}

// etagMatches checks a validator against an If-None-Match header value,
// honoring lists, weak validators and the wildcard.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
