package media

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "image/jpeg"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
	"github.com/innkeep/innkeep-api/internal/pkg/storage"
)

// newTestRouter mounts the media routes with a stub auth layer that injects
// the given principal into every request.
func newTestRouter(t *testing.T, p middleware.Principal) (*chi.Mux, *stubRepo, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	repo := newStubRepo()
	proc := imaging.NewProcessor(imaging.DefaultConfig())
	svc := NewService(repo, store, proc, NewCache(nil), Config{
		MaxFileSize:        5 << 20,
		MaxFilesPerRequest: 5,
		AllowedMimeTypes:   []string{"image/jpeg", "image/webp"},
		CacheMaxAgeSeconds: 3600,
		Workers:            2,
	})
	handler := NewHandler(svc, NewDelivery(svc, store, proc, 3600))

	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
		})
	}

	r := chi.NewRouter()
	RegisterRoutes(r, handler, auth)
	return r, repo, store
}

// seedImage stores distinguishable blobs for every rendition and registers
// the record. Payload contents mark which blob got served.
func seedImage(t *testing.T, repo *stubRepo, store storage.Storage, tenant string) *Image {
	t.Helper()
	ctx := context.Background()
	id := uuid.New().String()
	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)

	primary, err := store.Put(ctx, storage.ObjectKey(tenant, at, id, ".webp"), bytes.NewReader([]byte("WEBPDATA")), storage.PutOptions{})
	if err != nil {
		t.Fatalf("put primary: %v", err)
	}
	fallback, err := store.Put(ctx, storage.ObjectKey(tenant, at, id, ".jpg"), bytes.NewReader([]byte("JPEGDATA")), storage.PutOptions{})
	if err != nil {
		t.Fatalf("put fallback: %v", err)
	}

	thumbs := ThumbnailMap{}
	for _, spec := range ThumbnailSpecs {
		key := storage.ThumbnailKey(tenant, at, spec.Name, id, spec.Width, spec.Height, ".jpg")
		res, err := store.Put(ctx, key, bytes.NewReader([]byte("THUMB-"+spec.Name)), storage.PutOptions{})
		if err != nil {
			t.Fatalf("put thumbnail: %v", err)
		}
		thumbs[spec.Name] = Thumbnail{Path: key, URL: res.URL, Width: spec.Width, Height: spec.Height}
	}

	img := &Image{
		ID:          id,
		TenantID:    tenant,
		MimeType:    "image/jpeg",
		PrimaryURL:  primary.URL,
		FallbackURL: fallback.URL,
		Optimized:   true,
		Thumbnails:  thumbs,
		UploadedAt:  at,
	}
	repo.images[id] = img
	return img
}

func doGet(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServeNegotiatesWebP(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	w := doGet(r, "/images/"+img.ID, map[string]string{"Accept": "image/webp,image/*,*/*"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != "WEBPDATA" {
		t.Errorf("body = %q, want the WebP blob", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Vary") != "Accept" {
		t.Error("missing Vary: Accept")
	}
}

func TestServeFallsBackWithoutWebPSupport(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	w := doGet(r, "/images/"+img.ID, map[string]string{"Accept": "image/jpeg,image/png"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != "JPEGDATA" {
		t.Errorf("body = %q, want the fallback blob", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServeSuccessHeaders(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	w := doGet(r, "/images/"+img.ID, nil)
	h := w.Header()
	if h.Get("Cache-Control") != "public, max-age=3600, immutable" {
		t.Errorf("Cache-Control = %q", h.Get("Cache-Control"))
	}
	if h.Get("ETag") == "" {
		t.Error("missing ETag")
	}
	if h.Get("Last-Modified") != img.UploadedAt.UTC().Format(http.TimeFormat) {
		t.Errorf("Last-Modified = %q", h.Get("Last-Modified"))
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if h.Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestServeETagNotModified(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	first := doGet(r, "/images/"+img.ID, nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on first response")
	}

	second := doGet(r, "/images/"+img.ID, map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Error("304 carried a body")
	}
	if second.Header().Get("ETag") != etag {
		t.Error("304 missing ETag validator")
	}

	stale := doGet(r, "/images/"+img.ID, map[string]string{"If-None-Match": `"some-other-validator"`})
	if stale.Code != http.StatusOK {
		t.Errorf("stale validator status = %d, want 200", stale.Code)
	}
}

func TestServeIfModifiedSince(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	current := doGet(r, "/images/"+img.ID, map[string]string{
		"If-Modified-Since": img.UploadedAt.UTC().Format(http.TimeFormat),
	})
	if current.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", current.Code)
	}

	stale := doGet(r, "/images/"+img.ID, map[string]string{
		"If-Modified-Since": img.UploadedAt.Add(-time.Hour).UTC().Format(http.TimeFormat),
	})
	if stale.Code != http.StatusOK {
		t.Errorf("stale copy status = %d, want 200", stale.Code)
	}
}

func TestServePlaceholderWhenBlobMissing(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))

	id := uuid.New().String()
	repo.images[id] = &Image{
		ID:          id,
		TenantID:    "hotel-1",
		MimeType:    "image/jpeg",
		PrimaryURL:  store.URL("hotel-1/2026/08/" + id + ".jpg"),
		FallbackURL: store.URL("hotel-1/2026/08/" + id + ".jpg"),
		UploadedAt:  time.Now().UTC(),
	}

	w := doGet(r, "/images/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Placeholder") != "1" {
		t.Error("missing X-Placeholder marker")
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, placeholders must not be cached", w.Header().Get("Cache-Control"))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("placeholder not decodable: %v", err)
	}
	if cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("placeholder dims = %dx%d, want 800x600", cfg.Width, cfg.Height)
	}
}

func TestServeThumbnailSizeTokens(t *testing.T) {
	r, repo, store := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img := seedImage(t, repo, store, "hotel-1")

	tests := []struct {
		token string
		body  string
	}{
		{"large", "THUMB-large"},
		{"LARGE", "THUMB-large"},
		{"120", "THUMB-small"},
		{"301", "THUMB-large"},
		{"2000", "THUMB-xlarge"},
	}
	for _, tt := range tests {
		w := doGet(r, "/images/"+img.ID+"/thumbnail/"+tt.token, nil)
		if w.Code != http.StatusOK {
			t.Errorf("token %q status = %d", tt.token, w.Code)
			continue
		}
		if got := w.Body.String(); got != tt.body {
			t.Errorf("token %q served %q, want %q", tt.token, got, tt.body)
		}
	}

	w := doGet(r, "/images/"+img.ID+"/thumbnail/banana", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid token status = %d, want 400", w.Code)
	}
}

func TestServeThumbnailPlaceholderWithoutRenditions(t *testing.T) {
	r, repo, _ := newTestRouter(t, testPrincipal("hotel-1", "staff"))

	id := uuid.New().String()
	repo.images[id] = &Image{ID: id, TenantID: "hotel-1", UploadedAt: time.Now().UTC()}

	w := doGet(r, "/images/"+id+"/thumbnail/medium", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Placeholder") != "1" {
		t.Error("missing X-Placeholder marker")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("placeholder not decodable: %v", err)
	}
	if cfg.Width != 300 || cfg.Height != 300 {
		t.Errorf("placeholder dims = %dx%d, want the medium rendition's 300x300", cfg.Width, cfg.Height)
	}
}

func TestServeAccessControl(t *testing.T) {
	outsider, repo, store := newTestRouter(t, testPrincipal("hotel-2", "owner"))
	img := seedImage(t, repo, store, "hotel-1")

	if w := doGet(outsider, "/images/"+img.ID, nil); w.Code != http.StatusForbidden {
		t.Errorf("cross-tenant status = %d, want 403", w.Code)
	}

	same, repo2, store2 := newTestRouter(t, testPrincipal("hotel-1", "staff"))
	img2 := seedImage(t, repo2, store2, "hotel-1")

	if w := doGet(same, "/images/"+uuid.New().String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
	if w := doGet(same, "/images/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", w.Code)
	}
	if w := doGet(same, "/images/"+img2.ID, nil); w.Code != http.StatusOK {
		t.Errorf("same-tenant status = %d, want 200", w.Code)
	}
}
