package storex

import "github.com/Abraxas-365/visionocr/errx"

// Error registry for storex
var (
	ErrRegistry = errx.NewRegistry("STORE")

	ErrRecordNotFound   = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, 404, "Record not found")
	ErrConnectionFailed = ErrRegistry.Register("CONNECTION_FAILED", errx.TypeUnavailable, 503, "Database connection failed")
	ErrSaveFailed       = ErrRegistry.Register("SAVE_FAILED", errx.TypeInternal, 500, "Failed to save record")
	ErrQueryFailed      = ErrRegistry.Register("QUERY_FAILED", errx.TypeInternal, 500, "Query execution failed")
	ErrDecodeFailed     = ErrRegistry.Register("DECODE_FAILED", errx.TypeInternal, 500, "Failed to decode record")
	ErrUnknownDriver    = ErrRegistry.Register("UNKNOWN_DRIVER", errx.TypeValidation, 400, "Unknown store driver")
)

// IsRecordNotFound reports whether err is a missing record
func IsRecordNotFound(err error) bool {
	return errx.IsCode(err, ErrRecordNotFound)
}

// NotFound builds the missing-run error
func NotFound(id string) error {
	return ErrRegistry.New(ErrRecordNotFound).WithDetail("id", id)
}
