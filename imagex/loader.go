package imagex

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/Abraxas-365/visionocr/fsx/localfs"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrRegistry = errx.NewRegistry("IMAGE")

	ErrNotFound    = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, 404, "Image not found")
	ErrInvalid     = ErrRegistry.Register("INVALID", errx.TypeValidation, 400, "Invalid image")
	ErrUnsupported = ErrRegistry.Register("UNSUPPORTED", errx.TypeValidation, 415, "Unsupported image format")
	ErrTooLarge    = ErrRegistry.Register("TOO_LARGE", errx.TypeValidation, 413, "Image too large")
)

// DefaultMaxPixels bounds the decoded size of encoded sources
const DefaultMaxPixels = 64 << 20

// Loader reads and normalizes images
type Loader struct {
	fs        fsx.FileSystem
	maxSide   int
	maxPixels int
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithFileSystem sets where path sources are read from
func WithFileSystem(fs fsx.FileSystem) LoaderOption {
	return func(l *Loader) { l.fs = fs }
}

// WithMaxSide downscales images whose longest side exceeds n pixels.
// Zero keeps the original size.
func WithMaxSide(n int) LoaderOption {
	return func(l *Loader) { l.maxSide = n }
}

// WithMaxPixels rejects encoded images declaring more than n pixels before
// they are decoded. Zero or less keeps DefaultMaxPixels.
func WithMaxPixels(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxPixels = n
		}
	}
}

// NewLoader creates a loader reading paths from the local disk by default
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{fs: localfs.New(""), maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the source as an opaque RGBA image. Every source form goes
// through the same normalization so a path and its decoded image load
// identically.
func (l *Loader) Load(ctx context.Context, src Source) (*image.RGBA, error) {
	var img image.Image
	switch src.kind {
	case kindPath:
		data, err := l.fs.ReadFile(ctx, src.path)
		if err != nil {
			if errx.IsCode(err, fsx.ErrNotFound) {
				return nil, ErrRegistry.NewWithCause(ErrNotFound, err).WithDetail("path", src.path)
			}
			if errx.IsCode(err, fsx.ErrInvalidPath) {
				return nil, ErrRegistry.NewWithCause(ErrInvalid, err).WithDetail("path", src.path)
			}
			return nil, err
		}
		img, err = l.decode(data, src.name)
		if err != nil {
			return nil, err
		}
	case kindBytes:
		var err error
		img, err = l.decode(src.data, src.name)
		if err != nil {
			return nil, err
		}
	case kindImage:
		if src.img == nil {
			return nil, ErrRegistry.NewWithMessage(ErrInvalid, "nil image")
		}
		img = src.img
	default:
		return nil, ErrRegistry.NewWithMessage(ErrInvalid, "empty image source")
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, ErrRegistry.NewWithMessage(ErrInvalid, "image has no pixels").WithDetail("source", src.name)
	}
	return Normalize(img, l.maxSide), nil
}

func (l *Loader) decode(data []byte, name string) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrRegistry.NewWithMessage(ErrInvalid, "empty image data").WithDetail("source", name)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err, name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrRegistry.NewWithMessage(ErrInvalid, "image has no pixels").WithDetail("source", name)
	}
	if cfg.Width > l.maxPixels/cfg.Height {
		return nil, ErrRegistry.New(ErrTooLarge).
			WithDetail("source", name).
			WithDetail("width", cfg.Width).
			WithDetail("height", cfg.Height).
			WithDetail("max_pixels", l.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err, name)
	}
	return img, nil
}

func decodeError(err error, name string) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrRegistry.NewWithCause(ErrUnsupported, err).WithDetail("source", name)
	}
	return ErrRegistry.NewWithCause(ErrInvalid, err).WithDetail("source", name)
}

// Normalize flattens img onto white as an RGBA image with origin (0,0),
// scaling it down with Catmull-Rom when its longest side exceeds maxSide.
func Normalize(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	}
	return dst
}
