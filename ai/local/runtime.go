package local

import (
	"context"
	"net/http"

	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/inference/llamacpp"
	"github.com/Abraxas-365/visionocr/ai/inference/ollama"
	"github.com/Abraxas-365/visionocr/logx"
)

// NewRuntime creates the named runtime
func NewRuntime(name string, rc RuntimeConfig, log *logx.Logger) (inference.Runtime, error) {
	switch name {
	case "", ollama.Name:
		rt, err := ollama.New(rc.OllamaHost, http.DefaultClient,
			ollama.WithPull(rc.OllamaPull),
			ollama.WithLogger(log.WithPrefix(ollama.Name)))
		if err != nil {
			return nil, err
		}
		return rt, nil
	case llamacpp.Name:
		return llamacpp.New(rc.LlamaCppBinary,
			llamacpp.WithThreads(rc.LlamaCppThreads),
			llamacpp.WithLogger(log.WithPrefix(llamacpp.Name))), nil
	}
	return nil, ErrRegistry.NewWithMessage(ErrInvalidConfig, "unknown runtime").WithDetail("runtime", name)
}

// Available reports whether the named runtime can serve a backend, without
// loading a model
func Available(ctx context.Context, name string, rc RuntimeConfig) error {
	rt, err := NewRuntime(name, rc, logx.Named("local"))
	if err != nil {
		return err
	}
	return rt.Available(ctx)
}
