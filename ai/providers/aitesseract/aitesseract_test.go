//go:build !tesseract

package aitesseract

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/imagex"
)

func TestUnavailableWithoutTag(t *testing.T) {
	p := New(nil)
	if err := p.Available(context.Background()); !errx.IsCode(err, ErrNotCompiled) {
		t.Fatalf("expected not compiled, got %v", err)
	}
	_, err := p.Extract(context.Background(), imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	if !errx.IsCode(err, ErrNotCompiled) {
		t.Fatalf("expected not compiled, got %v", err)
	}
}

func TestImageErrorsComeFirst(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), imagex.Path(filepath.Join(t.TempDir(), "none.png")))
	if !errx.IsCode(err, imagex.ErrNotFound) {
		t.Fatalf("expected image not found, got %v", err)
	}
}
