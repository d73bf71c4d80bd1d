package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrForeignURL is returned when a URL does not belong to the configured
	// backend. URL-taking operations reject foreign hosts before any I/O.
	ErrForeignURL = errors.New("url does not belong to the configured storage backend")
)

// PutOptions controls how an object is stored.
type PutOptions struct {
	ContentType string
	CacheMaxAge int // seconds; 0 leaves the backend default
}

// PutResult reports where an object landed.
type PutResult struct {
	URL  string
	Size int64
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	URL          string
	ContentType  string
	Size         int64
	LastModified time.Time
}

// ListResult is one page of a prefix listing.
type ListResult struct {
	Items   []ObjectInfo
	HasMore bool
	Cursor  string
}

// Storage is the blob backend contract. Delete, Head, Copy and Get take full
// URLs and must validate ownership via Owns before touching the backend.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, opts PutOptions) (*PutResult, error)
	Get(ctx context.Context, url string) (io.ReadCloser, error)
	Head(ctx context.Context, url string) (*ObjectInfo, error)
	Delete(ctx context.Context, url string) error
	Copy(ctx context.Context, fromURL, toKey string) (*PutResult, error)
	List(ctx context.Context, prefix, cursor string, limit int) (*ListResult, error)

	// Owns reports whether the URL points into this backend's storage domain.
	Owns(url string) bool

	// URL returns the public URL for a key.
	URL(key string) string
}

// DeleteOutcome is the per-URL result of a batch delete. Deleting an
// already-absent object is not an error: Deleted is false, Reason "not found".
type DeleteOutcome struct {
	URL     string `json:"url"`
	Deleted bool   `json:"deleted"`
	Reason  string `json:"reason,omitempty"`
}

// DeleteFailure records a URL that could not be deleted.
type DeleteFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// BatchDeleteResult aggregates a batch delete.
type BatchDeleteResult struct {
	Successful []DeleteOutcome `json:"successful"`
	Failed     []DeleteFailure `json:"failed"`
}

// DeleteBatch deletes every URL concurrently. One failing URL never aborts
// the others; the result is reported per URL in input order.
func DeleteBatch(ctx context.Context, st Storage, urls []string) *BatchDeleteResult {
	type slot struct {
		outcome *DeleteOutcome
		failure *DeleteFailure
	}

	slots := make([]slot, len(urls))
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			if !st.Owns(u) {
				slots[i].failure = &DeleteFailure{URL: u, Reason: ErrForeignURL.Error()}
				return
			}

			switch err := st.Delete(ctx, u); {
			case err == nil:
				slots[i].outcome = &DeleteOutcome{URL: u, Deleted: true}
			case errors.Is(err, ErrNotFound):
				slots[i].outcome = &DeleteOutcome{URL: u, Deleted: false, Reason: "not found"}
			default:
				slots[i].failure = &DeleteFailure{URL: u, Reason: err.Error()}
			}
		}(i, u)
	}
	wg.Wait()

	result := &BatchDeleteResult{
		Successful: make([]DeleteOutcome, 0, len(urls)),
		Failed:     []DeleteFailure{},
	}
	for _, s := range slots {
		if s.outcome != nil {
			result.Successful = append(result.Successful, *s.outcome)
		}
		if s.failure != nil {
			result.Failed = append(result.Failed, *s.failure)
		}
	}
	return result
}

// ObjectKey builds the deterministic key for a primary or fallback rendition:
// {tenant}/{year}/{month}/{id}{ext}. The layout lets cleanup tooling locate
// files by tenant and date without consulting the metadata store.
func ObjectKey(tenantID string, uploadedAt time.Time, id, ext string) string {
	return fmt.Sprintf("%s/%04d/%02d/%s%s", tenantID, uploadedAt.Year(), int(uploadedAt.Month()), id, ext)
}

// ThumbnailKey builds the deterministic key for a thumbnail rendition:
// {tenant}/{year}/{month}/thumbnails/{size}/{id}_{w}x{h}{ext}.
func ThumbnailKey(tenantID string, uploadedAt time.Time, size, id string, width, height int, ext string) string {
	return fmt.Sprintf("%s/%04d/%02d/thumbnails/%s/%s_%dx%d%s",
		tenantID, uploadedAt.Year(), int(uploadedAt.Month()), size, id, width, height, ext)
}

// TenantPrefix is the listing prefix covering every object a tenant owns.
func TenantPrefix(tenantID string) string {
	return tenantID + "/"
}
