package local

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
)

// Name is the backend tag reported in structured records
const Name = "local"

// Backend runs OCR on a model resident on one device. Extract calls are
// serialized; run several backends for parallelism.
type Backend struct {
	cfg     Config
	dev     device.Device
	runtime inference.Runtime
	images  *imagex.Loader
	log     *logx.Logger

	mu     sync.Mutex
	loaded *loadedModel
}

var _ ocr.Backend = (*Backend)(nil)

type options struct {
	runtime  inference.Runtime
	rc       RuntimeConfig
	resolver *device.Resolver
	images   *imagex.Loader
	log      *logx.Logger
}

// Option configures a Backend
type Option func(*options)

// WithRuntime uses rt instead of creating the runtime named in Config
func WithRuntime(rt inference.Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// WithRuntimeConfig sets runtime connection settings
func WithRuntimeConfig(rc RuntimeConfig) Option {
	return func(o *options) { o.rc = rc }
}

// WithResolver sets the device resolver
func WithResolver(r *device.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithImageLoader sets the image loader
func WithImageLoader(l *imagex.Loader) Option {
	return func(o *options) { o.images = l }
}

// WithLogger sets the logger
func WithLogger(l *logx.Logger) Option {
	return func(o *options) { o.log = l }
}

// New resolves the device and loads the model. It returns a ready Backend
// or an error, never a partially loaded one.
func New(ctx context.Context, cfg Config, opts ...Option) (*Backend, error) {
	o := &options{rc: RuntimeConfig{OllamaPull: true}}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logx.Named(Name)
	}
	if o.resolver == nil {
		o.resolver = device.NewResolver(nil)
	}
	if o.images == nil {
		o.images = imagex.NewLoader()
	}

	cfg = cfg.withDefaults()
	if o.runtime != nil {
		cfg.Runtime = o.runtime.Name()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rt := o.runtime
	if rt == nil {
		var err error
		rt, err = NewRuntime(cfg.Runtime, o.rc, o.log)
		if err != nil {
			return nil, err
		}
	}

	dev := o.resolver.Resolve(cfg.Device)
	o.log.Info("Loading model %s on device %s...", cfg.Model, dev)

	loaded, err := load(ctx, rt, cfg.Model, dev, cfg.Quantization, o.log)
	if err != nil {
		return nil, err
	}

	return &Backend{
		cfg:     cfg,
		dev:     dev,
		runtime: rt,
		images:  o.images,
		log:     o.log,
		loaded:  loaded,
	}, nil
}

// Name returns the backend tag
func (b *Backend) Name() string { return Name }

// Info describes the loaded model
type Info struct {
	Backend      string `json:"backend"`
	Runtime      string `json:"runtime"`
	Model        string `json:"model"`
	Device       string `json:"device"`
	Precision    string `json:"precision"`
	Quantization string `json:"quantization"`
}

// Info returns what the backend is running
func (b *Backend) Info() Info {
	return Info{
		Backend:      Name,
		Runtime:      b.runtime.Name(),
		Model:        b.cfg.Model,
		Device:       b.dev.String(),
		Precision:    inference.PrecisionFor(b.cfg.Quantization, b.dev).String(),
		Quantization: b.cfg.Quantization.String(),
	}
}

// Device returns the resolved device
func (b *Backend) Device() device.Device { return b.dev }

// Extract runs one generation pass over the image. Image errors come back
// as imagex errors; failures during generation as ErrExtractionFailed.
func (b *Backend) Extract(ctx context.Context, src imagex.Source, opts ...ocr.Option) (ocr.Result, error) {
	o, err := ocr.Apply(opts...)
	if err != nil {
		return ocr.Result{}, err
	}

	img, err := b.images.Load(ctx, src)
	if err != nil {
		return ocr.Result{}, err
	}

	start := time.Now()
	text, gen, err := b.run(ctx, src, img, o)
	if err != nil {
		return ocr.Result{}, err
	}
	took := time.Since(start)

	res := ocr.NewResult(text, o, Name, b.cfg.Model, 1.0)
	res.Usage = ocr.EstimateUsage(ocr.Usage{
		PromptTokens:     gen.PromptTokens,
		CompletionTokens: gen.CompletionTokens,
	}, o.Prompt, text)
	res.Usage.ProcessingTime = int(took.Milliseconds())
	return res, nil
}

// run holds the model for one generation pass
func (b *Backend) run(ctx context.Context, src imagex.Source, img *image.RGBA, o *ocr.Options) (string, inference.Generation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded == nil {
		return "", inference.Generation{}, ErrRegistry.New(ErrClosed)
	}
	text, gen, err := b.generate(ctx, img, o)
	if err != nil {
		return "", inference.Generation{}, ErrRegistry.NewWithCause(ErrExtractionFailed, err).
			WithDetail("source", src.String())
	}
	return text, gen, nil
}

func (b *Backend) generate(ctx context.Context, img *image.RGBA, o *ocr.Options) (string, inference.Generation, error) {
	proc := b.loaded.processor
	inputs, err := proc.Encode(ctx, img, o.Prompt)
	if err != nil {
		return "", inference.Generation{}, err
	}
	inputs.Device = b.dev

	special := proc.SpecialTokens()
	gen, err := b.loaded.model.Generate(ctx, inputs, inference.GenerateOptions{
		MaxNewTokens: o.MaxNewTokens,
		Greedy:       true,
		PadToken:     special.Pad,
		EOSToken:     special.EOS,
	})
	if err != nil {
		return "", inference.Generation{}, err
	}

	text, err := proc.Decode(gen, true)
	if err != nil {
		return "", inference.Generation{}, err
	}
	return stripPromptEcho(text, o.Prompt), gen, nil
}

// stripPromptEcho removes the prompt when the model repeats it
func stripPromptEcho(text, prompt string) string {
	if prompt != "" && strings.Contains(text, prompt) {
		return strings.TrimSpace(strings.ReplaceAll(text, prompt, ""))
	}
	return text
}

// ExtractBatch extracts every source in order. Item failures, including
// image errors, become failure outcomes.
func (b *Backend) ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...ocr.Option) []ocr.Outcome {
	opts = append([]ocr.Option{ocr.WithLogger(b.log)}, opts...)
	return ocr.RunBatch(ctx, b, srcs, opts...)
}

// Close releases the model. Later calls fail with ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded == nil {
		return nil
	}
	err := b.loaded.close()
	b.loaded = nil
	if err != nil {
		return ErrRegistry.NewWithCause(ErrReleaseFailed, err).WithDetail("model", b.cfg.Model)
	}
	b.log.Info("Model %s released", b.cfg.Model)
	return nil
}
