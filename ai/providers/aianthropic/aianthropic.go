// Package aianthropic is an OCR backend over Claude vision messages.
package aianthropic

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/ai/providers"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Name is the backend tag reported in structured records
const Name = "anthropic"

// DefaultModel is used when no model is configured
const DefaultModel = "claude-3-5-sonnet-latest"

// Provider extracts text with an Anthropic vision model
type Provider struct {
	client anthropic.Client
	apiKey string
	model  string
	images *imagex.Loader
	log    *logx.Logger
}

var _ ocr.Backend = (*Provider)(nil)

// New creates a provider. An empty apiKey falls back to ANTHROPIC_API_KEY.
func New(apiKey, model string, images *imagex.Loader, opts ...option.RequestOption) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = DefaultModel
	}
	if images == nil {
		images = imagex.NewLoader()
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{
		client: anthropic.NewClient(options...),
		apiKey: apiKey,
		model:  model,
		images: images,
		log:    logx.Named(Name),
	}
}

func (p *Provider) Name() string { return Name }

// Available reports whether a key is configured. It makes no request.
func (p *Provider) Available(ctx context.Context) error {
	if p.apiKey == "" {
		return providers.ErrRegistry.New(providers.ErrMissingKey).WithDetail("env", "ANTHROPIC_API_KEY")
	}
	return nil
}

func (p *Provider) Extract(ctx context.Context, src imagex.Source, opts ...ocr.Option) (ocr.Result, error) {
	o, err := ocr.Apply(opts...)
	if err != nil {
		return ocr.Result{}, err
	}
	img, err := providers.LoadImage(ctx, p.images, src)
	if err != nil {
		return ocr.Result{}, err
	}

	model := o.Model
	if model == "" {
		model = p.model
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(o.MaxNewTokens),
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: providers.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MediaType, img.Base64),
				anthropic.NewTextBlock(o.Prompt),
			),
		},
	})
	if err != nil {
		return ocr.Result{}, providers.ErrRegistry.NewWithCause(providers.ErrRequestFailed, err).
			WithDetail("backend", Name).
			WithDetail("model", model)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return ocr.Result{}, providers.ErrRegistry.New(providers.ErrEmptyResponse).
			WithDetail("backend", Name).
			WithDetail("model", model)
	}

	text := strings.Join(parts, "\n")
	res := ocr.NewResult(text, o, Name, model, providers.EstimateConfidence(text))
	res.Usage = ocr.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		ProcessingTime:   int(time.Since(start).Milliseconds()),
	}
	return res, nil
}

func (p *Provider) ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...ocr.Option) []ocr.Outcome {
	opts = append([]ocr.Option{ocr.WithLogger(p.log)}, opts...)
	return ocr.RunBatch(ctx, p, srcs, opts...)
}

func (p *Provider) Close() error { return nil }
