// Package providers holds what the remote OCR backends share: the REMOTE
// error registry, the system prompt and image encoding.
package providers

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/imagex"
)

// Error registry for remote backends
var (
	ErrRegistry = errx.NewRegistry("REMOTE")

	ErrRequestFailed = ErrRegistry.Register("REQUEST_FAILED", errx.TypeExternal, 502, "Remote OCR request failed")
	ErrEmptyResponse = ErrRegistry.Register("EMPTY_RESPONSE", errx.TypeExternal, 502, "Remote OCR returned no text")
	ErrMissingKey    = ErrRegistry.Register("MISSING_API_KEY", errx.TypeUnavailable, 503, "API key is not configured")
)

// SystemPrompt frames the model as an OCR engine
const SystemPrompt = "You are an OCR system that extracts text from images. " +
	"Reply with the text only, without commentary."

// EncodedImage is a normalized image ready to send
type EncodedImage struct {
	MediaType string
	Base64    string
}

// DataURL renders the image as a data: URL
func (e EncodedImage) DataURL() string {
	return "data:" + e.MediaType + ";base64," + e.Base64
}

// LoadImage loads src through images and encodes it as PNG
func LoadImage(ctx context.Context, images *imagex.Loader, src imagex.Source) (EncodedImage, error) {
	img, err := images.Load(ctx, src)
	if err != nil {
		return EncodedImage{}, err
	}
	data, err := inference.EncodePNG(img)
	if err != nil {
		return EncodedImage{}, imagex.ErrRegistry.NewWithCause(imagex.ErrInvalid, err).WithDetail("source", src.String())
	}
	return EncodedImage{MediaType: "image/png", Base64: base64.StdEncoding.EncodeToString(data)}, nil
}

// EstimateConfidence reads a self-reported confidence hint from the reply
func EstimateConfidence(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "low confidence"):
		return 0.3
	case strings.Contains(lower, "medium confidence"):
		return 0.6
	case strings.Contains(lower, "high confidence"):
		return 0.9
	}
	return 0.7
}
