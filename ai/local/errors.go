package local

import "github.com/Abraxas-365/visionocr/errx"

// Error registry for the local backend
var (
	ErrRegistry = errx.NewRegistry("LOCAL")

	ErrLoadFailed       = ErrRegistry.Register("LOAD_FAILED", errx.TypeSystem, 500, "Failed to load model")
	ErrExtractionFailed = ErrRegistry.Register("EXTRACTION_FAILED", errx.TypeInternal, 500, "OCR extraction failed")
	ErrInvalidConfig    = ErrRegistry.Register("INVALID_CONFIG", errx.TypeValidation, 400, "Invalid backend configuration")
	ErrClosed           = ErrRegistry.Register("CLOSED", errx.TypeUnavailable, 503, "Backend is closed")
	ErrReleaseFailed    = ErrRegistry.Register("RELEASE_FAILED", errx.TypeSystem, 500, "Failed to release model")
)
