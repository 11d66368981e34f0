package inference

import (
	"bytes"
	"image"
	"image/png"
	"strings"
)

// EncodePNG serializes an image for runtimes that take encoded images
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, ErrRegistry.NewWithCause(ErrProcessorFailed, err)
	}
	return buf.Bytes(), nil
}

// StripSpecialTokens removes control markers and surrounding whitespace
func StripSpecialTokens(text string, tokens []string) string {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		text = strings.ReplaceAll(text, tok, "")
	}
	return strings.TrimSpace(text)
}

// CutAtStop truncates text at the first stop marker
func CutAtStop(text string, stops ...string) (string, bool) {
	cut := -1
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return text, false
	}
	return text[:cut], true
}
