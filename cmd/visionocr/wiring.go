package main

import (
	"context"

	"github.com/Abraxas-365/visionocr/ai/local"
	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/ai/providers/aianthropic"
	"github.com/Abraxas-365/visionocr/ai/providers/aiopenai"
	"github.com/Abraxas-365/visionocr/ai/providers/aitesseract"
	"github.com/Abraxas-365/visionocr/config"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/Abraxas-365/visionocr/fsx/localfs"
	"github.com/Abraxas-365/visionocr/fsx/s3fs"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/Abraxas-365/visionocr/storex/mongostore"
	"github.com/Abraxas-365/visionocr/storex/sqlstore"
)

// fileSystem routes plain paths to disk and s3:// paths to S3
func fileSystem(ctx context.Context, s config.Settings) (*fsx.Mux, error) {
	mux := fsx.NewMux(localfs.New(""))
	s3, err := s3fs.New(ctx, s.AWS.Region, s.AWS.Bucket)
	if err != nil {
		return nil, err
	}
	return mux.Handle("s3", s3), nil
}

func imageLoader(s config.Settings, fs fsx.FileSystem) *imagex.Loader {
	return imagex.NewLoader(
		imagex.WithFileSystem(fs),
		imagex.WithMaxSide(s.Image.MaxSide),
		imagex.WithMaxPixels(s.Image.MaxPixels),
	)
}

// extractDefaults turns the configured per-call defaults into options
func extractDefaults(s config.Settings) []ocr.Option {
	opts := []ocr.Option{ocr.WithStructured(s.Extract.Structured)}
	if s.Extract.Prompt != "" {
		opts = append(opts, ocr.WithPrompt(s.Extract.Prompt))
	}
	if s.Extract.MaxNewTokens > 0 {
		opts = append(opts, ocr.WithMaxNewTokens(s.Extract.MaxNewTokens))
	}
	if s.Extract.BatchSize > 0 {
		opts = append(opts, ocr.WithBatchSize(s.Extract.BatchSize))
	}
	return opts
}

// openBackend opens the configured backend. "auto" tries the local model
// first, then the remote providers with a key, then tesseract.
func openBackend(ctx context.Context, s config.Settings, images *imagex.Loader) (ocr.Backend, error) {
	candidates, err := backendCandidates(s, images)
	if err != nil {
		return nil, err
	}
	if s.Backend.Kind != "auto" {
		for _, c := range candidates {
			if c.Name == s.Backend.Kind {
				return c.Open(ctx)
			}
		}
	}
	return ocr.Select(ctx, logx.Named("backend"), candidates...)
}

func backendCandidates(s config.Settings, images *imagex.Loader) ([]ocr.Candidate, error) {
	cfg, rc, err := s.LocalConfig()
	if err != nil {
		return nil, err
	}
	// remote.api_key and remote.model belong to an explicitly chosen
	// provider; under auto each provider reads its own environment key
	remote := func(kind string) (string, string) {
		if s.Backend.Kind == kind {
			return s.Remote.APIKey, s.Remote.Model
		}
		return "", ""
	}
	key, model := remote(aiopenai.Name)
	openai := aiopenai.NewOpenAIProvider(key, model, images)
	key, model = remote(aianthropic.Name)
	anthropic := aianthropic.New(key, model, images)
	tesseract := aitesseract.New(images, s.Remote.Languages...)

	return []ocr.Candidate{
		{
			Name: local.Name,
			Available: func(ctx context.Context) error {
				return local.Available(ctx, cfg.Runtime, rc)
			},
			Open: func(ctx context.Context) (ocr.Backend, error) {
				return local.New(ctx, cfg, local.WithRuntimeConfig(rc), local.WithImageLoader(images))
			},
		},
		{
			Name:      aiopenai.Name,
			Available: openai.Available,
			Open:      func(context.Context) (ocr.Backend, error) { return openai, nil },
		},
		{
			Name:      aianthropic.Name,
			Available: anthropic.Available,
			Open:      func(context.Context) (ocr.Backend, error) { return anthropic, nil },
		},
		{
			Name:      aitesseract.Name,
			Available: tesseract.Available,
			Open:      func(context.Context) (ocr.Backend, error) { return tesseract, nil },
		},
	}, nil
}

// backendInfo describes b for the API and the CLI
func backendInfo(b ocr.Backend) func() any {
	return func() any {
		if l, ok := b.(*local.Backend); ok {
			return l.Info()
		}
		return map[string]string{"backend": b.Name()}
	}
}

// openStore opens the configured run store, or nil for "none"
func openStore(ctx context.Context, s config.Settings) (storex.RunStore, error) {
	switch s.Store.Driver {
	case "none":
		return nil, nil
	case "memory", "":
		return storex.NewMemoryStore(), nil
	case "postgres":
		st, err := sqlstore.Open(ctx, s.Store.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "mongo":
		st, err := mongostore.Open(ctx, s.Store.DSN, s.Store.Database)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, storex.ErrRegistry.New(storex.ErrUnknownDriver).WithDetail("driver", s.Store.Driver)
	}
}
