package media

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
)

// Canonical thumbnail sizes. Every persisted record with thumbnails carries
// exactly these four renditions.
const (
	SizeSmall  = "small"  // 150x150
	SizeMedium = "medium" // 300x300
	SizeLarge  = "large"  // 600x400
	SizeXLarge = "xlarge" // 1200x800
)

// SizeOriginal is the pseudo-size used in cache validators for the primary image.
const SizeOriginal = "original"

// ThumbnailSpecs defines the fixed rendition set, in ascending size order.
var ThumbnailSpecs = []imaging.ThumbSpec{
	{Name: SizeSmall, Width: 150, Height: 150},
	{Name: SizeMedium, Width: 300, Height: 300},
	{Name: SizeLarge, Width: 600, Height: 400},
	{Name: SizeXLarge, Width: 1200, Height: 800},
}

// RequiredThumbnailSizes lists the keys a complete thumbnail map must carry.
var RequiredThumbnailSizes = []string{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

// NormalizeSize maps a size token to a canonical size name. Canonical names
// match case-insensitively; bare pixel values map to the nearest rendition.
func NormalizeSize(token string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case SizeSmall:
		return SizeSmall, nil
	case SizeMedium:
		return SizeMedium, nil
	case SizeLarge:
		return SizeLarge, nil
	case SizeXLarge:
		return SizeXLarge, nil
	}

	px, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || px <= 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSizeToken, token)
	}
	switch {
	case px <= 150:
		return SizeSmall, nil
	case px <= 300:
		return SizeMedium, nil
	case px <= 600:
		return SizeLarge, nil
	default:
		return SizeXLarge, nil
	}
}

// SizeDimensions returns the pixel dimensions of a canonical size.
func SizeDimensions(size string) (width, height int) {
	for _, spec := range ThumbnailSpecs {
		if spec.Name == size {
			return spec.Width, spec.Height
		}
	}
	return 0, 0
}

// Thumbnail is one stored rendition of an image.
type Thumbnail struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// ThumbnailMap is the per-image rendition set, persisted as JSONB.
type ThumbnailMap map[string]Thumbnail

// Complete reports whether the map carries all four required sizes.
func (m ThumbnailMap) Complete() bool {
	for _, size := range RequiredThumbnailSizes {
		if _, ok := m[size]; !ok {
			return false
		}
	}
	return true
}

// Value implements driver.Valuer for JSONB storage
func (m ThumbnailMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage
func (m *ThumbnailMap) Scan(src interface{}) error {
	if src == nil {
		*m = ThumbnailMap{}
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ThumbnailMap", src)
	}
	return json.Unmarshal(data, m)
}

// Image is the record of truth for one uploaded photo and its derivatives.
// Read-only after creation except for administrative deletion; TenantID is
// the sole authorization boundary and never changes.
type Image struct {
	ID               string       `db:"id" json:"id"`
	TenantID         string       `db:"tenant_id" json:"tenant_id"`
	OriginalFilename string       `db:"original_filename" json:"original_filename"`
	MimeType         string       `db:"mime_type" json:"mime_type"`
	FileSize         int64        `db:"file_size" json:"file_size"`
	Width            int          `db:"width" json:"width"`
	Height           int          `db:"height" json:"height"`
	PrimaryURL       string       `db:"primary_url" json:"primary_url"`
	FallbackURL      string       `db:"fallback_url" json:"fallback_url"`
	Optimized        bool         `db:"optimized" json:"optimized"`
	Thumbnails       ThumbnailMap `db:"thumbnails" json:"thumbnails"`
	UploadedAt       time.Time    `db:"uploaded_at" json:"uploaded_at"`
	UploadedBy       uuid.UUID    `db:"uploaded_by" json:"uploaded_by"`
}

// PrimaryMimeType is the content type of the modern rendition.
func (i *Image) PrimaryMimeType() string {
	if i.Optimized {
		return imaging.MimeWebP
	}
	return i.MimeType
}

// FallbackMimeType is the content type of the legacy rendition.
func (i *Image) FallbackMimeType() string {
	if i.Optimized {
		return imaging.MimeJPEG
	}
	return i.MimeType
}

// DerivativeURLs lists every blob the record owns: primary, fallback and all
// thumbnails, deduplicated (primary and fallback coincide for unoptimized
// uploads).
func (i *Image) DerivativeURLs() []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0, 2+len(i.Thumbnails))

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	add(i.PrimaryURL)
	add(i.FallbackURL)
	for _, size := range RequiredThumbnailSizes {
		if t, ok := i.Thumbnails[size]; ok {
			add(t.URL)
		}
	}
	return urls
}
