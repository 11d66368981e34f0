//go:build tesseract

package aitesseract

import (
	"github.com/otiai10/gosseract/v2"
)

func available() error { return nil }

// recognize returns the page text and the mean word confidence in [0,1]
func recognize(png []byte, languages []string) (string, float64, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(png); err != nil {
		return "", 0, err
	}
	if err := c.SetLanguage(languages...); err != nil {
		return "", 0, err
	}
	text, err := c.Text()
	if err != nil {
		return "", 0, err
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return text, 0, nil
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return text, sum / float64(len(boxes)), nil
}
