// Package aiopenai is an OCR backend over OpenAI vision chat completions.
package aiopenai

import (
	"context"
	"os"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/ai/providers"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared/constant"
)

// Name is the backend tag reported in structured records
const Name = "openai"

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o"

// OpenAIProvider extracts text with an OpenAI vision model
type OpenAIProvider struct {
	client openai.Client
	apiKey string
	model  string
	images *imagex.Loader
	log    *logx.Logger
}

var _ ocr.Backend = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider. An empty apiKey falls
// back to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey, model string, images *imagex.Loader, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = DefaultModel
	}
	if images == nil {
		images = imagex.NewLoader()
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client: openai.NewClient(options...),
		apiKey: apiKey,
		model:  model,
		images: images,
		log:    logx.Named(Name),
	}
}

func (p *OpenAIProvider) Name() string { return Name }

// Available reports whether a key is configured. It makes no request.
func (p *OpenAIProvider) Available(ctx context.Context) error {
	if p.apiKey == "" {
		return providers.ErrRegistry.New(providers.ErrMissingKey).WithDetail("env", "OPENAI_API_KEY")
	}
	return nil
}

func (p *OpenAIProvider) Extract(ctx context.Context, src imagex.Source, opts ...ocr.Option) (ocr.Result, error) {
	options, err := ocr.Apply(opts...)
	if err != nil {
		return ocr.Result{}, err
	}
	img, err := providers.LoadImage(ctx, p.images, src)
	if err != nil {
		return ocr.Result{}, err
	}

	contentParts := []openai.ChatCompletionContentPartUnionParam{
		{
			OfText: &openai.ChatCompletionContentPartTextParam{
				Type: constant.Text("text"),
				Text: options.Prompt,
			},
		},
		{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				Type: constant.ImageURL("image_url"),
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL:    img.DataURL(),
					Detail: "high",
				},
			},
		},
	}

	modelToUse := options.Model
	if modelToUse == "" {
		modelToUse = p.model
	}
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(providers.SystemPrompt),
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: contentParts,
					},
				},
			},
		},
		Model:       modelToUse,
		MaxTokens:   openai.Int(int64(options.MaxNewTokens)),
		Temperature: openai.Float(0),
	}

	startTime := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ocr.Result{}, providers.ErrRegistry.NewWithCause(providers.ErrRequestFailed, err).
			WithDetail("backend", Name).
			WithDetail("model", modelToUse)
	}
	if len(completion.Choices) == 0 {
		return ocr.Result{}, providers.ErrRegistry.New(providers.ErrEmptyResponse).
			WithDetail("backend", Name).
			WithDetail("model", modelToUse)
	}

	text := completion.Choices[0].Message.Content
	result := ocr.NewResult(text, options, Name, modelToUse, providers.EstimateConfidence(text))
	result.Usage = ocr.Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		ProcessingTime:   int(time.Since(startTime).Milliseconds()),
	}
	return result, nil
}

func (p *OpenAIProvider) ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...ocr.Option) []ocr.Outcome {
	opts = append([]ocr.Option{ocr.WithLogger(p.log)}, opts...)
	return ocr.RunBatch(ctx, p, srcs, opts...)
}

func (p *OpenAIProvider) Close() error { return nil }
