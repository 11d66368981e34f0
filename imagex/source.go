package imagex

import (
	"fmt"
	"image"
)

type sourceKind int

const (
	kindPath sourceKind = iota
	kindBytes
	kindImage
)

// Source is an image given by location, encoded bytes or an already decoded
// image
type Source struct {
	kind sourceKind
	path string
	data []byte
	img  image.Image
	name string
}

// Path refers to a local file or an s3:// object
func Path(p string) Source {
	return Source{kind: kindPath, path: p, name: p}
}

// Bytes wraps encoded image data (PNG, JPEG, GIF, BMP, TIFF or WebP). name
// labels the source in logs and results.
func Bytes(data []byte, name string) Source {
	if name == "" {
		name = fmt.Sprintf("bytes[%d]", len(data))
	}
	return Source{kind: kindBytes, data: data, name: name}
}

// Image wraps a decoded image
func Image(img image.Image) Source {
	name := "image"
	if img != nil {
		b := img.Bounds()
		name = fmt.Sprintf("image[%dx%d]", b.Dx(), b.Dy())
	}
	return Source{kind: kindImage, img: img, name: name}
}

// Paths converts file paths to sources
func Paths(paths ...string) []Source {
	out := make([]Source, len(paths))
	for i, p := range paths {
		out[i] = Path(p)
	}
	return out
}

// String names the source
func (s Source) String() string { return s.name }

// Location returns the path for path sources
func (s Source) Location() (string, bool) {
	return s.path, s.kind == kindPath
}
