package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines image metadata data access. The store itself is
// tenant-agnostic; callers supply the tenant filter (the access guard is the
// enforcement point, never an unscoped public query path).
type Repository interface {
	Create(ctx context.Context, img *Image) error
	GetByID(ctx context.Context, id string) (*Image, error)
	GetByURL(ctx context.Context, url string) (*Image, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Image, error)
	ListByUploader(ctx context.Context, tenantID string, uploaderID uuid.UUID) ([]*Image, error)
	ListByDateRange(ctx context.Context, tenantID string, start, end time.Time) ([]*Image, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates image metadata repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, img *Image) error {
	// Partial thumbnail sets are never a valid terminal state
	if len(img.Thumbnails) > 0 && !img.Thumbnails.Complete() {
		return ErrIncompleteThumbnails
	}
	if img.TenantID == "" {
		return fmt.Errorf("image record requires a tenant id")
	}

	query := `
		INSERT INTO images (
			id, tenant_id, original_filename, mime_type, file_size,
			width, height, primary_url, fallback_url, optimized,
			thumbnails, uploaded_at, uploaded_by
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		img.ID, img.TenantID, img.OriginalFilename, img.MimeType, img.FileSize,
		img.Width, img.Height, img.PrimaryURL, img.FallbackURL, img.Optimized,
		img.Thumbnails, img.UploadedAt, img.UploadedBy,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*Image, error) {
	query := `SELECT * FROM images WHERE id = $1`
	var img Image
	err := r.db.GetContext(ctx, &img, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &img, nil
}

func (r *repository) GetByURL(ctx context.Context, url string) (*Image, error) {
	query := `SELECT * FROM images WHERE primary_url = $1 OR fallback_url = $1`
	var img Image
	err := r.db.GetContext(ctx, &img, query, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &img, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID string) ([]*Image, error) {
	query := `SELECT * FROM images WHERE tenant_id = $1 ORDER BY uploaded_at DESC`
	var images []*Image
	err := r.db.SelectContext(ctx, &images, query, tenantID)
	return images, err
}

func (r *repository) ListByUploader(ctx context.Context, tenantID string, uploaderID uuid.UUID) ([]*Image, error) {
	query := `
		SELECT * FROM images
		WHERE tenant_id = $1 AND uploaded_by = $2
		ORDER BY uploaded_at DESC
	`
	var images []*Image
	err := r.db.SelectContext(ctx, &images, query, tenantID, uploaderID)
	return images, err
}

func (r *repository) ListByDateRange(ctx context.Context, tenantID string, start, end time.Time) ([]*Image, error) {
	query := `
		SELECT * FROM images
		WHERE tenant_id = $1 AND uploaded_at >= $2 AND uploaded_at < $3
		ORDER BY uploaded_at DESC
	`
	var images []*Image
	err := r.db.SelectContext(ctx, &images, query, tenantID, start, end)
	return images, err
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
