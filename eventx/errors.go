package eventx

import "github.com/Abraxas-365/visionocr/errx"

// Error registry for eventx
var (
	ErrorRegistry = errx.NewRegistry("EVENT")

	ErrInvalidEventType    = ErrorRegistry.Register("INVALID_EVENT_TYPE", errx.TypeValidation, 400, "Event payload has an unexpected type")
	ErrHandlerFailed       = ErrorRegistry.Register("HANDLER_FAILED", errx.TypeInternal, 500, "Event handler failed")
	ErrSerializationFailed = ErrorRegistry.Register("SERIALIZATION_FAILED", errx.TypeInternal, 500, "Failed to serialize event")
	ErrBusClosed           = ErrorRegistry.Register("BUS_CLOSED", errx.TypeUnavailable, 503, "Event bus is closed")
)
