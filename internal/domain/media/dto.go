package media

import "time"

// ThumbnailResponse is the per-rendition payload
type ThumbnailResponse struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// ImageResponse is the public view of an image record
type ImageResponse struct {
	ID               string                       `json:"id"`
	OriginalFilename string                       `json:"original_filename"`
	MimeType         string                       `json:"mime_type"`
	FileSize         int64                        `json:"file_size"`
	Width            int                          `json:"width"`
	Height           int                          `json:"height"`
	PrimaryURL       string                       `json:"primary_url"`
	FallbackURL      string                       `json:"fallback_url"`
	Optimized        bool                         `json:"optimized"`
	Thumbnails       map[string]ThumbnailResponse `json:"thumbnails"`
	UploadedAt       time.Time                    `json:"uploaded_at"`
}

// ImageResponseFromEntity converts an entity to its public view
func ImageResponseFromEntity(img *Image) *ImageResponse {
	thumbs := make(map[string]ThumbnailResponse, len(img.Thumbnails))
	for size, t := range img.Thumbnails {
		thumbs[size] = ThumbnailResponse{
			URL:      t.URL,
			Width:    t.Width,
			Height:   t.Height,
			FileSize: t.FileSize,
		}
	}

	return &ImageResponse{
		ID:               img.ID,
		OriginalFilename: img.OriginalFilename,
		MimeType:         img.MimeType,
		FileSize:         img.FileSize,
		Width:            img.Width,
		Height:           img.Height,
		PrimaryURL:       img.PrimaryURL,
		FallbackURL:      img.FallbackURL,
		Optimized:        img.Optimized,
		Thumbnails:       thumbs,
		UploadedAt:       img.UploadedAt,
	}
}

// FileError references a failed input by its original position
type FileError struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// UploadResponse aggregates a batch upload. Successful results preserve the
// input order of the files that succeeded.
type UploadResponse struct {
	Successful []*ImageResponse `json:"successful"`
	Errors     []FileError      `json:"errors,omitempty"`
}

// DeleteBlobsRequest is the batch blob deletion payload
type DeleteBlobsRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,url"`
}

// ConfigResponse describes the upload limits currently in force
type ConfigResponse struct {
	AllowedMimeTypes   []string `json:"allowed_mime_types"`
	MaxFileSize        int64    `json:"max_file_size"`
	MaxFilesPerRequest int      `json:"max_files_per_request"`
	RemoteStorage      bool     `json:"remote_storage"`
	CacheMaxAgeSeconds int      `json:"cache_max_age_seconds"`
}
