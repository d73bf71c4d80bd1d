package gallery

import (
	"time"

	"github.com/lib/pq"
)

// Gallery is the ordered image list attached to one parent resource (a room,
// a property page). ImageIDs is the display order; membership changes and
// reordering are separate operations, so a reorder must be a permutation of
// the current membership.
type Gallery struct {
	ID        string         `db:"id" json:"id"`
	TenantID  string         `db:"tenant_id" json:"tenant_id"`
	ParentID  string         `db:"parent_id" json:"parent_id"`
	ImageIDs  pq.StringArray `db:"image_ids" json:"image_ids"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
