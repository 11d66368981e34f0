// Package config maps layered configx settings onto the typed settings of
// the visionocr binaries.
package config

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/local"
	"github.com/Abraxas-365/visionocr/configx"
)

// EnvPrefix prefixes every environment key: VISIONOCR_BACKEND__MODEL
const EnvPrefix = "VISIONOCR_"

// Settings is the full runtime configuration
type Settings struct {
	Backend  Backend
	Extract  Extract
	Image    Image
	Ollama   Ollama
	LlamaCpp LlamaCpp
	Remote   Remote
	Server   Server
	AWS      AWS
	Queue    Queue
	Store    Store
}

// Backend selects the OCR backend
type Backend struct {
	// Kind is auto, local, openai, anthropic or tesseract
	Kind         string
	Runtime      string
	Model        string
	Device       string
	Quantization string
}

// Extract holds per-call defaults
type Extract struct {
	Prompt       string
	MaxNewTokens int
	BatchSize    int
	Structured   bool
}

type Image struct {
	MaxSide   int
	MaxPixels int
}

type Ollama struct {
	Host string
	Pull bool
}

type LlamaCpp struct {
	Binary  string
	Threads int
}

type Remote struct {
	Model     string
	APIKey    string
	Languages []string
}

type Server struct {
	Addr         string
	JWTSecret    string
	BodyLimitMB  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AWS struct {
	Region string
	Bucket string
}

type Queue struct {
	URL         string
	WaitSeconds int
	Visibility  int
}

type Store struct {
	// Driver is none, memory, postgres or mongo
	Driver   string
	DSN      string
	Database string
}

// Defaults are the lowest priority layer
func Defaults() map[string]any {
	return map[string]any{
		"backend.kind":           "auto",
		"backend.runtime":        "ollama",
		"backend.model":          "",
		"backend.device":         "auto",
		"backend.quantization":   "none",
		"extract.prompt":         "",
		"extract.max_new_tokens": 512,
		"extract.batch_size":     1,
		"extract.structured":     false,
		"image.max_side":         0,
		"image.max_pixels":       0,
		"ollama.host":            "",
		"ollama.pull":            true,
		"llamacpp.binary":        "",
		"llamacpp.threads":       0,
		"remote.model":           "",
		"remote.api_key":         "",
		"remote.languages":       "eng",
		"server.addr":            ":8080",
		"server.jwt_secret":      "",
		"server.body_limit_mb":   32,
		"server.read_timeout":    "30s",
		"server.write_timeout":   "5m",
		"aws.region":             "us-east-1",
		"aws.bucket":             "",
		"queue.url":              "",
		"queue.wait_seconds":     20,
		"queue.visibility":       600,
		"store.driver":           "memory",
		"store.dsn":              "",
		"store.database":         "visionocr",
	}
}

// Load builds settings from defaults, the environment, an optional .env
// file and an optional YAML/JSON file, in increasing priority
func Load(path string) (Settings, error) {
	b := configx.NewBuilder().
		WithDefaults(Defaults()).
		FromEnv(EnvPrefix).
		FromDotEnv(".env", EnvPrefix).
		WithValidation(validate)
	if path != "" {
		b = b.FromFile(path)
	}
	cfg, err := b.Build()
	if err != nil {
		return Settings{}, err
	}
	return FromConfig(cfg), nil
}

// FromConfig reads settings out of a loaded configx.Config
func FromConfig(cfg configx.Config) Settings {
	return Settings{
		Backend: Backend{
			Kind:         cfg.Get("backend.kind").AsStringDefault("auto"),
			Runtime:      cfg.Get("backend.runtime").AsStringDefault("ollama"),
			Model:        cfg.Get("backend.model").AsString(),
			Device:       cfg.Get("backend.device").AsStringDefault("auto"),
			Quantization: cfg.Get("backend.quantization").AsStringDefault("none"),
		},
		Extract: Extract{
			Prompt:       cfg.Get("extract.prompt").AsString(),
			MaxNewTokens: cfg.Get("extract.max_new_tokens").AsIntDefault(512),
			BatchSize:    cfg.Get("extract.batch_size").AsIntDefault(1),
			Structured:   cfg.Get("extract.structured").AsBool(),
		},
		Image: Image{
			MaxSide:   cfg.Get("image.max_side").AsInt(),
			MaxPixels: cfg.Get("image.max_pixels").AsInt(),
		},
		Ollama: Ollama{
			Host: cfg.Get("ollama.host").AsString(),
			Pull: cfg.Get("ollama.pull").AsBoolDefault(true),
		},
		LlamaCpp: LlamaCpp{
			Binary:  cfg.Get("llamacpp.binary").AsString(),
			Threads: cfg.Get("llamacpp.threads").AsInt(),
		},
		Remote: Remote{
			Model:     cfg.Get("remote.model").AsString(),
			APIKey:    cfg.Get("remote.api_key").AsString(),
			Languages: cfg.Get("remote.languages").AsStringSlice(),
		},
		Server: Server{
			Addr:         cfg.Get("server.addr").AsStringDefault(":8080"),
			JWTSecret:    cfg.Get("server.jwt_secret").AsString(),
			BodyLimitMB:  cfg.Get("server.body_limit_mb").AsIntDefault(32),
			ReadTimeout:  cfg.Get("server.read_timeout").AsDurationDefault(30 * time.Second),
			WriteTimeout: cfg.Get("server.write_timeout").AsDurationDefault(5 * time.Minute),
		},
		AWS: AWS{
			Region: cfg.Get("aws.region").AsStringDefault("us-east-1"),
			Bucket: cfg.Get("aws.bucket").AsString(),
		},
		Queue: Queue{
			URL:         cfg.Get("queue.url").AsString(),
			WaitSeconds: cfg.Get("queue.wait_seconds").AsIntDefault(20),
			Visibility:  cfg.Get("queue.visibility").AsIntDefault(600),
		},
		Store: Store{
			Driver:   cfg.Get("store.driver").AsStringDefault("memory"),
			DSN:      cfg.Get("store.dsn").AsString(),
			Database: cfg.Get("store.database").AsStringDefault("visionocr"),
		},
	}
}

func validate(cfg configx.Config) error {
	switch k := cfg.Get("backend.kind").AsString(); k {
	case "auto", "local", "openai", "anthropic", "tesseract":
	default:
		return fmt.Errorf("backend.kind: unknown backend %q", k)
	}
	if _, err := device.ParseRequest(cfg.Get("backend.device").AsString()); err != nil {
		return fmt.Errorf("backend.device: %w", err)
	}
	if _, err := inference.ParseQuantization(cfg.Get("backend.quantization").AsString()); err != nil {
		return fmt.Errorf("backend.quantization: %w", err)
	}
	switch d := cfg.Get("store.driver").AsString(); d {
	case "none", "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", d)
	}
	return nil
}

// LocalConfig builds the local backend configuration
func (s Settings) LocalConfig() (local.Config, local.RuntimeConfig, error) {
	cfg, err := local.ParseConfig(s.Backend.Model, s.Backend.Device, s.Backend.Quantization, s.Backend.Runtime)
	if err != nil {
		return local.Config{}, local.RuntimeConfig{}, err
	}
	return cfg, local.RuntimeConfig{
		OllamaHost:      s.Ollama.Host,
		OllamaPull:      s.Ollama.Pull,
		LlamaCppBinary:  s.LlamaCpp.Binary,
		LlamaCppThreads: s.LlamaCpp.Threads,
	}, nil
}
