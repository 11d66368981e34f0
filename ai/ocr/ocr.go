package ocr

import (
	"context"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/imagex"
)

// DefaultPrompt is used when a request carries no prompt
const DefaultPrompt = "Extract all text from this image. Return only the text content."

var (
	ErrRegistry = errx.NewRegistry("OCR")

	ErrNoBackend      = ErrRegistry.Register("NO_BACKEND", errx.TypeUnavailable, 503, "No OCR backend is available")
	ErrInvalidOptions = ErrRegistry.Register("INVALID_OPTIONS", errx.TypeValidation, 400, "Invalid OCR options")
	ErrCancelled      = ErrRegistry.Register("CANCELLED", errx.TypeTimeout, 499, "Batch cancelled before the item ran")
	ErrPanicked       = ErrRegistry.Register("PANICKED", errx.TypeInternal, 500, "Extraction panicked")
)

// Extractor extracts text from one image
type Extractor interface {
	// Name is the backend tag reported in structured records
	Name() string

	Extract(ctx context.Context, src imagex.Source, opts ...Option) (Result, error)
}

// Backend is an OCR engine holding its resources until Close
type Backend interface {
	Extractor

	// ExtractBatch never fails as a whole; see RunBatch
	ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...Option) []Outcome

	Close() error
}

// Result represents the output of an OCR operation
type Result struct {
	// Text is the extracted text
	Text string `json:"text"`

	// Record is set only for structured requests
	Record *Record `json:"record,omitempty"`

	// Usage contains token/resource usage statistics
	Usage Usage `json:"usage"`
}

// Record is the structured form of a result. Text always equals the plain
// result text.
type Record struct {
	Text       string  `json:"text"`
	Model      string  `json:"model,omitempty"`
	Backend    string  `json:"backend"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Usage represents resource usage statistics for OCR operations
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ProcessingTime   int `json:"processing_time_ms"` // in milliseconds
}

// NewResult builds the result shape for a request. Structured requests get a
// record mirroring the text.
func NewResult(text string, o *Options, backend, model string, confidence float64) Result {
	res := Result{Text: text}
	if o.Structured {
		res.Record = &Record{
			Text:       text,
			Model:      model,
			Backend:    backend,
			Confidence: confidence,
		}
	}
	return res
}
