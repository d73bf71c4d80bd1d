package gallery

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines gallery data access.
type Repository interface {
	GetByParent(ctx context.Context, parentID string) (*Gallery, error)
	UpdateOrder(ctx context.Context, parentID string, imageIDs []string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates gallery repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByParent(ctx context.Context, parentID string) (*Gallery, error) {
	query := `SELECT * FROM galleries WHERE parent_id = $1`
	var g Gallery
	err := r.db.GetContext(ctx, &g, query, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *repository) UpdateOrder(ctx context.Context, parentID string, imageIDs []string) error {
	query := `UPDATE galleries SET image_ids = $1, updated_at = $2 WHERE parent_id = $3`
	res, err := r.db.ExecContext(ctx, query, pq.Array(imageIDs), time.Now().UTC(), parentID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGalleryNotFound
	}
	return nil
}
