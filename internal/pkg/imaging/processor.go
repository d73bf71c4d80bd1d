package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	// WebP uploads must decode; imaging registers JPEG/PNG/GIF/TIFF/BMP itself.
	_ "golang.org/x/image/webp"
)

const (
	MimeWebP = "image/webp"
	MimeJPEG = "image/jpeg"

	ExtWebP = ".webp"
	ExtJPEG = ".jpg"
)

// Config for image processing
type Config struct {
	MaxWidth  int // Max width for the primary rendition (default 2000)
	MaxHeight int // Max height for the primary rendition (default 2000)
	Quality   int // JPEG quality 1-100 (default 85)
}

// DefaultConfig returns default processing config
func DefaultConfig() Config {
	return Config{
		MaxWidth:  2000,
		MaxHeight: 2000,
		Quality:   85,
	}
}

// ThumbSpec names one fixed thumbnail rendition.
type ThumbSpec struct {
	Name   string
	Width  int
	Height int
}

// Rendition is one encoded output of the pipeline.
type Rendition struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Derivatives contains every stored representation produced from one upload.
// Primary and Fallback encode the same pixels in two formats; when Optimized
// is false the source bytes could not be re-encoded and Primary carries them
// verbatim (Fallback is then identical).
type Derivatives struct {
	Primary    Rendition
	Fallback   Rendition
	Optimized  bool
	Thumbnails map[string]Rendition
}

// Processor turns raw upload bytes into stored representations.
type Processor struct {
	config Config
}

// NewProcessor creates image processor
func NewProcessor(config Config) *Processor {
	if config.MaxWidth <= 0 {
		config.MaxWidth = 2000
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = 2000
	}
	if config.Quality <= 0 {
		config.Quality = 85
	}
	return &Processor{config: config}
}

// Process decodes the upload, bounds it to the configured maximum (aspect
// ratio preserved, never upscaled), and encodes the WebP primary plus the
// JPEG fallback. When re-encoding fails the original bytes are kept verbatim.
func (p *Processor) Process(data []byte, srcMime string, thumbs []ThumbSpec) (*Derivatives, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := img
	if img.Bounds().Dx() > p.config.MaxWidth || img.Bounds().Dy() > p.config.MaxHeight {
		resized = imaging.Fit(img, p.config.MaxWidth, p.config.MaxHeight, imaging.Lanczos)
	}
	width := resized.Bounds().Dx()
	height := resized.Bounds().Dy()

	result := &Derivatives{
		Thumbnails: make(map[string]Rendition, len(thumbs)),
	}

	primary, err := encodeWebP(resized)
	if err == nil {
		fallback, fbErr := p.encodeJPEG(resized)
		if fbErr != nil {
			return nil, fmt.Errorf("failed to encode fallback: %w", fbErr)
		}
		result.Optimized = true
		result.Primary = Rendition{Data: primary, MimeType: MimeWebP, Width: width, Height: height}
		result.Fallback = Rendition{Data: fallback, MimeType: MimeJPEG, Width: width, Height: height}
	} else {
		// Re-encoding failed: keep the upload verbatim rather than failing it
		orig := Rendition{Data: data, MimeType: srcMime, Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
		result.Optimized = false
		result.Primary = orig
		result.Fallback = orig
	}

	for _, spec := range thumbs {
		rendition, err := p.Thumbnail(img, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s thumbnail: %w", spec.Name, err)
		}
		result.Thumbnails[spec.Name] = *rendition
	}

	return result, nil
}

// Thumbnail renders one cover-fit (crop to fill) rendition so grid layouts
// get consistent dimensions regardless of source aspect ratio.
func (p *Processor) Thumbnail(img image.Image, spec ThumbSpec) (*Rendition, error) {
	thumb := imaging.Fill(img, spec.Width, spec.Height, imaging.Center, imaging.Lanczos)

	data, err := p.encodeJPEG(thumb)
	if err != nil {
		return nil, err
	}

	return &Rendition{
		Data:     data,
		MimeType: MimeJPEG,
		Width:    thumb.Bounds().Dx(),
		Height:   thumb.Bounds().Dy(),
	}, nil
}

// Placeholder synthesizes a flat substitute image at the exact requested
// dimensions for serving when real bytes are missing.
func (p *Processor) Placeholder(width, height int) (*Rendition, error) {
	canvas := imaging.New(width, height, color.NRGBA{R: 229, G: 231, B: 235, A: 255})

	data, err := p.encodeJPEG(canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}

	return &Rendition{
		Data:     data,
		MimeType: MimeJPEG,
		Width:    width,
		Height:   height,
	}, nil
}

func (p *Processor) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.config.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
