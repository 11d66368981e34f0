package ocr

import (
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/logx"
)

// Options contains options for OCR operations
type Options struct {
	// Prompt is the instruction sent with the image
	Prompt string

	// Structured requests a Record alongside the text
	Structured bool

	// MaxNewTokens bounds generated output length
	MaxNewTokens int

	// BatchSize groups batch items for progress reporting
	BatchSize int

	// Model overrides the model of remote backends
	Model string

	progress []func(Progress)
	buses    []eventx.EventBus
	logger   *logx.Logger
}

// Option is a function type to modify Options
type Option func(*Options)

// WithPrompt sets the prompt. An empty prompt keeps the default.
func WithPrompt(prompt string) Option {
	return func(o *Options) {
		o.Prompt = prompt
	}
}

// WithStructured requests structured records
func WithStructured(structured bool) Option {
	return func(o *Options) {
		o.Structured = structured
	}
}

// WithMaxNewTokens sets the generation limit
func WithMaxNewTokens(n int) Option {
	return func(o *Options) {
		o.MaxNewTokens = n
	}
}

// WithBatchSize sets the progress chunk size
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

// WithModel sets the model used by remote backends
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithProgress registers a batch progress observer
func WithProgress(fn func(Progress)) Option {
	return func(o *Options) {
		o.progress = append(o.progress, fn)
	}
}

// WithEvents publishes batch lifecycle events on bus
func WithEvents(bus eventx.EventBus) Option {
	return func(o *Options) {
		o.buses = append(o.buses, bus)
	}
}

// WithLogger sets the logger used for batch progress
func WithLogger(l *logx.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// DefaultOptions returns the default OCR options
func DefaultOptions() *Options {
	return &Options{
		Prompt:       DefaultPrompt,
		MaxNewTokens: 512,
		BatchSize:    1,
	}
}

// Apply builds options from defaults and validates them
func Apply(opts ...Option) (*Options, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
	if o.MaxNewTokens <= 0 {
		return nil, ErrRegistry.NewWithMessage(ErrInvalidOptions, "max_new_tokens must be positive").
			WithDetail("max_new_tokens", o.MaxNewTokens)
	}
	if o.BatchSize <= 0 {
		return nil, ErrRegistry.NewWithMessage(ErrInvalidOptions, "batch_size must be positive").
			WithDetail("batch_size", o.BatchSize)
	}
	if o.logger == nil {
		o.logger = logx.Named("ocr")
	}
	return o, nil
}

// Logger returns the configured logger
func (o *Options) Logger() *logx.Logger {
	if o.logger == nil {
		return logx.Named("ocr")
	}
	return o.logger
}
