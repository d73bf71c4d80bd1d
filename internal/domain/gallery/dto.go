package gallery

import "time"

// ReorderRequest is the display-order update payload
type ReorderRequest struct {
	ImageIDs []string `json:"image_ids" validate:"required,min=1,dive,uuid"`
}

// GalleryResponse is the public view of a gallery
type GalleryResponse struct {
	ParentID  string    `json:"parent_id"`
	ImageIDs  []string  `json:"image_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResponseFromEntity converts an entity to its public view
func ResponseFromEntity(g *Gallery) *GalleryResponse {
	return &GalleryResponse{
		ParentID:  g.ParentID,
		ImageIDs:  g.ImageIDs,
		UpdatedAt: g.UpdatedAt,
	}
}
