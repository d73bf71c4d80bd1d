package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
	"github.com/innkeep/innkeep-api/internal/pkg/storage"
)

// Config holds the upload limits and pipeline knobs.
type Config struct {
	MaxFileSize        int64
	MaxFilesPerRequest int
	AllowedMimeTypes   []string
	CacheMaxAgeSeconds int
	Workers            int
	RemoteStorage      bool
}

// UploadFile is one raw input of a batch upload.
type UploadFile struct {
	Filename string
	Reader   io.Reader
}

// Service runs the derivative pipeline and owns metadata lifecycle.
type Service struct {
	repo  Repository
	store storage.Storage
	proc  *imaging.Processor
	cache *Cache
	cfg   Config
}

// NewService creates media service
func NewService(repo Repository, store storage.Storage, proc *imaging.Processor, cache *Cache, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		repo:  repo,
		store: store,
		proc:  proc,
		cache: cache,
		cfg:   cfg,
	}
}

// Upload processes a batch of files with bounded parallelism. One bad file
// never aborts its siblings; the response preserves input order and errors
// reference original positions.
func (s *Service) Upload(ctx context.Context, principal middleware.Principal, files []UploadFile, withThumbnails bool) (*UploadResponse, error) {
	if s.store == nil {
		return nil, ErrStorageUnconfigured
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.cfg.MaxFilesPerRequest {
		return nil, ErrTooManyFiles
	}

	type outcome struct {
		img *Image
		err error
	}

	outcomes := make([]outcome, len(files))
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			img, err := s.processFile(ctx, principal, files[i], withThumbnails)
			outcomes[i] = outcome{img: img, err: err}
		}(i)
	}
	wg.Wait()

	resp := &UploadResponse{Successful: []*ImageResponse{}}
	for i, o := range outcomes {
		if o.err != nil {
			resp.Errors = append(resp.Errors, FileError{
				Index:    i,
				Filename: files[i].Filename,
				Message:  o.err.Error(),
			})
			continue
		}
		resp.Successful = append(resp.Successful, ImageResponseFromEntity(o.img))
	}

	if len(resp.Successful) == 0 {
		return resp, ErrAllFilesFailed
	}
	return resp, nil
}

// processFile runs the full pipeline for one upload: validate, derive,
// persist blobs, create the metadata record. Any failure after blobs were
// stored schedules their removal so no servable orphans remain.
func (s *Service) processFile(ctx context.Context, principal middleware.Principal, file UploadFile, withThumbnails bool) (*Image, error) {
	data, mimeType, err := storage.ValidateFile(file.Reader, s.cfg.AllowedMimeTypes, s.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	var specs []imaging.ThumbSpec
	if withThumbnails {
		specs = ThumbnailSpecs
	}

	derived, err := s.proc.Process(data, mimeType, specs)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	opts := storage.PutOptions{CacheMaxAge: s.cfg.CacheMaxAgeSeconds}
	var stored []string

	cleanup := func() {
		if len(stored) == 0 {
			return
		}
		urls := append([]string(nil), stored...)
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res := storage.DeleteBatch(cctx, s.store, urls)
			if len(res.Failed) > 0 {
				log.Warn().Int("failed", len(res.Failed)).Str("image_id", id).Msg("Failed to clean up derivative blobs")
			}
		}()
	}

	primaryExt := imaging.ExtWebP
	if !derived.Optimized {
		primaryExt = storage.ExtensionForMime(mimeType)
	}
	primaryKey := storage.ObjectKey(principal.TenantID, now, id, primaryExt)

	opts.ContentType = derived.Primary.MimeType
	primaryRes, err := s.putWithRetry(ctx, primaryKey, derived.Primary.Data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to store primary rendition: %w", err)
	}
	stored = append(stored, primaryRes.URL)

	fallbackURL := primaryRes.URL
	if derived.Optimized {
		fallbackKey := storage.ObjectKey(principal.TenantID, now, id, imaging.ExtJPEG)
		opts.ContentType = derived.Fallback.MimeType
		fallbackRes, err := s.putWithRetry(ctx, fallbackKey, derived.Fallback.Data, opts)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to store fallback rendition: %w", err)
		}
		stored = append(stored, fallbackRes.URL)
		fallbackURL = fallbackRes.URL
	}

	thumbs := ThumbnailMap{}
	for _, spec := range specs {
		rendition := derived.Thumbnails[spec.Name]
		key := storage.ThumbnailKey(principal.TenantID, now, spec.Name, id, rendition.Width, rendition.Height, imaging.ExtJPEG)

		opts.ContentType = rendition.MimeType
		res, err := s.putWithRetry(ctx, key, rendition.Data, opts)
		if err != nil {
			// All four renditions or none: a partial set is not a valid record
			cleanup()
			return nil, fmt.Errorf("failed to store %s thumbnail: %w", spec.Name, err)
		}
		stored = append(stored, res.URL)

		thumbs[spec.Name] = Thumbnail{
			Path:     key,
			URL:      res.URL,
			Width:    rendition.Width,
			Height:   rendition.Height,
			FileSize: int64(len(rendition.Data)),
		}
	}

	img := &Image{
		ID:               id,
		TenantID:         principal.TenantID,
		OriginalFilename: file.Filename,
		MimeType:         mimeType,
		FileSize:         int64(len(data)),
		Width:            derived.Primary.Width,
		Height:           derived.Primary.Height,
		PrimaryURL:       primaryRes.URL,
		FallbackURL:      fallbackURL,
		Optimized:        derived.Optimized,
		Thumbnails:       thumbs,
		UploadedAt:       now,
		UploadedBy:       principal.UserID,
	}

	if err := s.repo.Create(ctx, img); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create image record: %w", err)
	}

	return img, nil
}

// putWithRetry retries one failed write once before giving up.
func (s *Service) putWithRetry(ctx context.Context, key string, data []byte, opts storage.PutOptions) (*storage.PutResult, error) {
	res, err := s.store.Put(ctx, key, bytes.NewReader(data), opts)
	if err == nil {
		return res, nil
	}
	return s.store.Put(ctx, key, bytes.NewReader(data), opts)
}

// GetForRead resolves a record and authorizes the principal against its
// tenant before any bytes move.
func (s *Service) GetForRead(ctx context.Context, principal middleware.Principal, id string) (*Image, error) {
	img := s.cache.Get(ctx, id)
	if img == nil {
		var err error
		img, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, ErrImageNotFound
		}
		s.cache.Set(ctx, img)
	}

	if err := Authorize(ctx, principal, img.TenantID, "read", img.ID); err != nil {
		return nil, err
	}
	return img, nil
}

// ListFilter narrows tenant listings.
type ListFilter struct {
	UploaderID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// List returns a tenant's images. Non-elevated principals may only list
// their own tenant.
func (s *Service) List(ctx context.Context, principal middleware.Principal, tenantID string, filter ListFilter) ([]*Image, error) {
	if tenantID == "" {
		tenantID = principal.TenantID
	}
	if err := Authorize(ctx, principal, tenantID, "list", tenantID); err != nil {
		return nil, err
	}

	switch {
	case filter.UploaderID != nil:
		return s.repo.ListByUploader(ctx, tenantID, *filter.UploaderID)
	case filter.From != nil && filter.To != nil:
		return s.repo.ListByDateRange(ctx, tenantID, *filter.From, *filter.To)
	default:
		return s.repo.ListByTenant(ctx, tenantID)
	}
}

// DeleteImage removes the metadata record and schedules removal of every
// associated blob. Blob removal is fire-and-forget; partial failure is
// logged and left to the sweeper.
func (s *Service) DeleteImage(ctx context.Context, principal middleware.Principal, id string) error {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if img == nil {
		return ErrImageNotFound
	}
	if err := Authorize(ctx, principal, img.TenantID, "delete", img.ID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)

	urls := img.DerivativeURLs()
	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res := storage.DeleteBatch(cctx, s.store, urls)
		if len(res.Failed) > 0 {
			log.Warn().
				Str("image_id", id).
				Int("failed", len(res.Failed)).
				Msg("Blob removal incomplete, leaving to sweeper")
		}
		s.cache.NotifySweeper(cctx)
	}()

	return nil
}

// DeleteBlobs removes raw blob URLs. Every URL must belong to the configured
// backend; URLs whose metadata record belongs to another tenant (or orphan
// URLs, for non-elevated principals) are rejected per URL, not wholesale.
func (s *Service) DeleteBlobs(ctx context.Context, principal middleware.Principal, urls []string) (*storage.BatchDeleteResult, error) {
	if s.store == nil {
		return nil, ErrStorageUnconfigured
	}

	allowed := make([]string, 0, len(urls))
	denied := []storage.DeleteFailure{}

	for _, u := range urls {
		if !s.store.Owns(u) {
			denied = append(denied, storage.DeleteFailure{URL: u, Reason: storage.ErrForeignURL.Error()})
			continue
		}

		img, err := s.repo.GetByURL(ctx, u)
		if err != nil {
			denied = append(denied, storage.DeleteFailure{URL: u, Reason: "metadata lookup failed"})
			continue
		}

		if img != nil {
			if err := Authorize(ctx, principal, img.TenantID, "delete-blob", u); err != nil {
				denied = append(denied, storage.DeleteFailure{URL: u, Reason: "access denied"})
				continue
			}
		} else if !principal.Elevated() {
			// Orphan blobs are cleanup candidates for admins only
			denied = append(denied, storage.DeleteFailure{URL: u, Reason: "access denied"})
			continue
		}

		allowed = append(allowed, u)
	}

	result := storage.DeleteBatch(ctx, s.store, allowed)
	result.Failed = append(result.Failed, denied...)
	return result, nil
}

// ConfigInfo reports the limits currently in force.
func (s *Service) ConfigInfo() ConfigResponse {
	return ConfigResponse{
		AllowedMimeTypes:   s.cfg.AllowedMimeTypes,
		MaxFileSize:        s.cfg.MaxFileSize,
		MaxFilesPerRequest: s.cfg.MaxFilesPerRequest,
		RemoteStorage:      s.cfg.RemoteStorage,
		CacheMaxAgeSeconds: s.cfg.CacheMaxAgeSeconds,
	}
}

