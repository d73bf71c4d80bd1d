package media

import (
	"errors"
	"testing"
	"time"

	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
)

func TestNormalizeSize(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"small", SizeSmall},
		{"SMALL", SizeSmall},
		{" Medium ", SizeMedium},
		{"xlarge", SizeXLarge},
		{"1", SizeSmall},
		{"150", SizeSmall},
		{"151", SizeMedium},
		{"300", SizeMedium},
		{"301", SizeLarge},
		{"600", SizeLarge},
		{"601", SizeXLarge},
		{"99999", SizeXLarge},
	}
	for _, tt := range tests {
		got, err := NormalizeSize(tt.token)
		if err != nil {
			t.Errorf("NormalizeSize(%q) error: %v", tt.token, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeSize(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestNormalizeSizeRejectsInvalidTokens(t *testing.T) {
	for _, token := range []string{"", "banana", "0", "-5", "12.5", "smallish"} {
		if _, err := NormalizeSize(token); !errors.Is(err, ErrInvalidSizeToken) {
			t.Errorf("NormalizeSize(%q) = %v, want ErrInvalidSizeToken", token, err)
		}
	}
}

func TestThumbnailMapComplete(t *testing.T) {
	full := ThumbnailMap{}
	for _, size := range RequiredThumbnailSizes {
		full[size] = Thumbnail{URL: "u-" + size}
	}
	if !full.Complete() {
		t.Error("full map reported incomplete")
	}

	delete(full, SizeLarge)
	if full.Complete() {
		t.Error("partial map reported complete")
	}

	if (ThumbnailMap{}).Complete() {
		t.Error("empty map reported complete")
	}
}

func TestDerivativeURLsDeduplicates(t *testing.T) {
	img := &Image{
		PrimaryURL:  "http://m/a.jpg",
		FallbackURL: "http://m/a.jpg", // unoptimized upload: same blob
		Thumbnails: ThumbnailMap{
			SizeSmall: Thumbnail{URL: "http://m/thumb_s.jpg"},
		},
	}
	urls := img.DerivativeURLs()
	if len(urls) != 2 {
		t.Fatalf("urls = %v, want 2 entries", urls)
	}
}

func TestMimeTypesFollowOptimizedFlag(t *testing.T) {
	opt := &Image{Optimized: true, MimeType: "image/png"}
	if opt.PrimaryMimeType() != imaging.MimeWebP || opt.FallbackMimeType() != imaging.MimeJPEG {
		t.Errorf("optimized record mimes = %q/%q", opt.PrimaryMimeType(), opt.FallbackMimeType())
	}

	raw := &Image{Optimized: false, MimeType: "image/gif"}
	if raw.PrimaryMimeType() != "image/gif" || raw.FallbackMimeType() != "image/gif" {
		t.Errorf("unoptimized record mimes = %q/%q", raw.PrimaryMimeType(), raw.FallbackMimeType())
	}
}

func TestETagIsStablePerRendition(t *testing.T) {
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	img := &Image{ID: "abc", UploadedAt: at}

	if ETag(img, SizeOriginal) != ETag(img, SizeOriginal) {
		t.Error("etag not deterministic")
	}
	if ETag(img, SizeSmall) == ETag(img, SizeOriginal) {
		t.Error("different renditions share an etag")
	}

	later := &Image{ID: "abc", UploadedAt: at.Add(time.Second)}
	if ETag(img, SizeOriginal) == ETag(later, SizeOriginal) {
		t.Error("different upload times share an etag")
	}
}
