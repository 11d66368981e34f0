package local

import (
	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/inference/ollama"
)

// DefaultModel is the Ollama model used when none is configured
const DefaultModel = "qwen2.5vl:3b"

// Config selects the model and where it runs. It is fixed for the life of
// a Backend.
type Config struct {
	// Model is a runtime model identifier: an Ollama model name or a
	// llama.cpp model directory
	Model string

	Device       device.Request
	Quantization inference.Quantization

	// Runtime names the inference runtime ("ollama" or "llamacpp")
	Runtime string
}

// RuntimeConfig carries runtime connection settings
type RuntimeConfig struct {
	OllamaHost      string
	OllamaPull      bool
	LlamaCppBinary  string
	LlamaCppThreads int
}

// ParseConfig builds a Config from string settings
func ParseConfig(model, dev, quantization, runtime string) (Config, error) {
	req, err := device.ParseRequest(dev)
	if err != nil {
		return Config{}, ErrRegistry.NewWithCause(ErrInvalidConfig, err).WithDetail("device", dev)
	}
	q, err := inference.ParseQuantization(quantization)
	if err != nil {
		return Config{}, ErrRegistry.NewWithCause(ErrInvalidConfig, err).WithDetail("quantization", quantization)
	}
	cfg := Config{Model: model, Device: req, Quantization: q, Runtime: runtime}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.Runtime == "" {
		c.Runtime = ollama.Name
	}
	if c.Model == "" && c.Runtime == ollama.Name {
		c.Model = DefaultModel
	}
	return c
}

func (c Config) validate() error {
	if c.Model == "" {
		return ErrRegistry.NewWithMessage(ErrInvalidConfig, "model is required").
			WithDetail("runtime", c.Runtime)
	}
	return nil
}
