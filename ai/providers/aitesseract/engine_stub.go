//go:build !tesseract

package aitesseract

func available() error {
	return ErrRegistry.New(ErrNotCompiled).WithDetail("build_tag", "tesseract")
}

func recognize(png []byte, languages []string) (string, float64, error) {
	return "", 0, available()
}
