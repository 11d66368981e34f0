// Package aitesseract is a classic OCR backend over the Tesseract engine.
// Build with -tags tesseract to link libtesseract; other builds report the
// backend as unavailable.
package aitesseract

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
)

// Name is the backend tag reported in structured records
const Name = "tesseract"

// Error registry for the tesseract backend
var (
	ErrRegistry = errx.NewRegistry("TESSERACT")

	ErrNotCompiled     = ErrRegistry.Register("NOT_COMPILED", errx.TypeUnavailable, 503, "Built without tesseract support")
	ErrRecognizeFailed = ErrRegistry.Register("RECOGNIZE_FAILED", errx.TypeExternal, 500, "Tesseract recognition failed")
)

// Provider runs Tesseract on each image. The prompt is ignored.
type Provider struct {
	languages []string
	images    *imagex.Loader
	log       *logx.Logger
}

var _ ocr.Backend = (*Provider)(nil)

// New creates a provider recognizing the given languages (eng by default)
func New(images *imagex.Loader, languages ...string) *Provider {
	if images == nil {
		images = imagex.NewLoader()
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Provider{languages: languages, images: images, log: logx.Named(Name)}
}

func (p *Provider) Name() string { return Name }

// Available reports whether the engine is linked in
func (p *Provider) Available(ctx context.Context) error { return available() }

func (p *Provider) Extract(ctx context.Context, src imagex.Source, opts ...ocr.Option) (ocr.Result, error) {
	o, err := ocr.Apply(opts...)
	if err != nil {
		return ocr.Result{}, err
	}
	img, err := p.images.Load(ctx, src)
	if err != nil {
		return ocr.Result{}, err
	}
	data, err := inference.EncodePNG(img)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}

	start := time.Now()
	text, confidence, err := recognize(data, p.languages)
	if err != nil {
		if errx.IsCode(err, ErrNotCompiled) {
			return ocr.Result{}, err
		}
		return ocr.Result{}, ErrRegistry.NewWithCause(ErrRecognizeFailed, err).WithDetail("source", src.String())
	}

	text = strings.TrimSpace(text)
	res := ocr.NewResult(text, o, Name, strings.Join(p.languages, "+"), confidence)
	res.Usage = ocr.EstimateUsage(ocr.Usage{}, "", text)
	res.Usage.ProcessingTime = int(time.Since(start).Milliseconds())
	return res, nil
}

func (p *Provider) ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...ocr.Option) []ocr.Outcome {
	opts = append([]ocr.Option{ocr.WithLogger(p.log)}, opts...)
	return ocr.RunBatch(ctx, p, srcs, opts...)
}

func (p *Provider) Close() error { return nil }
