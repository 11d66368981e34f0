package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/ollama/ollama/api"
)

const Name = "ollama"

// quantization tags understood by the Ollama create endpoint
var quantizeTags = map[inference.Quantization]string{
	inference.QuantInt4: "q4_K_M",
	inference.QuantInt8: "q8_0",
}

// Runtime drives a local Ollama server
type Runtime struct {
	client *api.Client
	host   string
	pull   bool
	log    *logx.Logger
}

// Option configures the runtime
type Option func(*Runtime)

// WithLogger sets the logger
func WithLogger(l *logx.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithPull pulls models that are missing from the server
func WithPull(pull bool) Option {
	return func(r *Runtime) { r.pull = pull }
}

// New creates a runtime for the server at host. An empty host reads
// OLLAMA_HOST and falls back to the default local address.
func New(host string, httpClient *http.Client, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		pull: true,
		log:  logx.Named("ollama"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
				WithDetail("runtime", Name)
		}
		r.client = client
		r.host = "env"
		return r, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
			WithDetail("runtime", Name).
			WithDetail("host", host)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	r.client = api.NewClient(base, httpClient)
	r.host = host
	return r, nil
}

func (r *Runtime) Name() string { return Name }

// Available checks the server answers without loading anything
func (r *Runtime) Available(ctx context.Context) error {
	if err := r.client.Heartbeat(ctx); err != nil {
		return inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
			WithDetail("runtime", Name).
			WithDetail("host", r.host)
	}
	return nil
}

// LoadProcessor resolves the model on the server, pulling it when allowed.
// Ollama applies the prompt template server side, so the processor only
// carries the image encoding and token cleanup.
func (r *Runtime) LoadProcessor(ctx context.Context, id string) (inference.Processor, error) {
	show, err := r.ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hasVisionFamily(show.Details.Families) {
		r.log.Warn("Model %s reports no vision projector (families: %v); image inputs may be ignored", id, show.Details.Families)
	}
	return &processor{model: id}, nil
}

// LoadModel prepares the model. Quantized requests go through the server's
// native quantizer and are placed immediately; unquantized loads wait for
// an explicit To.
func (r *Runtime) LoadModel(ctx context.Context, id string, opts inference.LoadOptions) (inference.Model, error) {
	target := id
	if tag, ok := quantizeTags[opts.Quantization]; ok {
		var err error
		target, err = r.quantize(ctx, id, tag)
		if err != nil {
			return nil, err
		}
	} else {
		show, err := r.ensure(ctx, id)
		if err != nil {
			return nil, err
		}
		if lvl := strings.ToUpper(show.Details.QuantizationLevel); lvl != "" && !strings.HasPrefix(lvl, "F") {
			r.log.Warn("Model %s is stored as %s; requested %s is decided by the weight format", id, lvl, opts.Precision)
		}
	}

	m := &model{
		rt:        r,
		name:      target,
		precision: opts.Precision,
	}
	if opts.Quantization != inference.QuantNone {
		if err := m.To(ctx, opts.Device); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (r *Runtime) ensure(ctx context.Context, id string) (*api.ShowResponse, error) {
	show, err := r.client.Show(ctx, &api.ShowRequest{Model: id})
	if err == nil {
		return show, nil
	}
	if !isNotFound(err) {
		return nil, r.requestError(err, id)
	}
	if !r.pull {
		return nil, inference.ErrRegistry.NewWithCause(inference.ErrModelNotFound, err).
			WithDetail("model", id)
	}

	r.log.Info("Pulling model %s...", id)
	var last string
	err = r.client.Pull(ctx, &api.PullRequest{Model: id}, func(p api.ProgressResponse) error {
		if p.Status != last {
			r.log.Debug("pull %s: %s", id, p.Status)
			last = p.Status
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, inference.ErrRegistry.NewWithCause(inference.ErrModelNotFound, err).
				WithDetail("model", id)
		}
		return nil, r.requestError(err, id)
	}

	show, err = r.client.Show(ctx, &api.ShowRequest{Model: id})
	if err != nil {
		return nil, r.requestError(err, id)
	}
	return show, nil
}

// quantize creates a derived model "<id>-<tag>" once and reuses it afterwards
func (r *Runtime) quantize(ctx context.Context, id, tag string) (string, error) {
	target := quantizedName(id, tag)
	if _, err := r.client.Show(ctx, &api.ShowRequest{Model: target}); err == nil {
		return target, nil
	} else if !isNotFound(err) {
		return "", r.requestError(err, target)
	}
	if _, err := r.ensure(ctx, id); err != nil {
		return "", err
	}

	r.log.Info("Quantizing %s to %s...", id, tag)
	err := r.client.Create(ctx, &api.CreateRequest{
		Model:    target,
		From:     id,
		Quantize: tag,
	}, func(p api.ProgressResponse) error {
		r.log.Debug("create %s: %s", target, p.Status)
		return nil
	})
	if err != nil {
		return "", inference.ErrRegistry.NewWithCause(inference.ErrPlacementFailed, err).
			WithDetail("model", id).
			WithDetail("quantize", tag)
	}
	return target, nil
}

func (r *Runtime) requestError(err error, id string) error {
	return inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
		WithDetail("runtime", Name).
		WithDetail("model", id)
}

func quantizedName(id, tag string) string {
	name, version, ok := strings.Cut(id, ":")
	if !ok {
		version = "latest"
	}
	return fmt.Sprintf("%s:%s-%s", name, version, strings.ToLower(tag))
}

func isNotFound(err error) bool {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}

func hasVisionFamily(families []string) bool {
	for _, f := range families {
		switch strings.ToLower(f) {
		case "clip", "mllama", "qwen25vl", "gemma3", "llava":
			return true
		}
	}
	return false
}

// numGPU maps a device to the Ollama num_gpu option. Zero offloaded layers
// keeps the model on the CPU; accelerators leave the choice to the server.
func numGPU(dev device.Device) (int, bool) {
	if dev.IsCPU() {
		return 0, true
	}
	return 0, false
}

// mainGPU maps the index of an explicit "cuda:N" style device to the Ollama
// main_gpu option
func mainGPU(dev device.Device) (int, bool, error) {
	if dev.Kind != device.Other {
		return 0, false, nil
	}
	_, idx, ok := strings.Cut(dev.Name, ":")
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0, false, inference.ErrRegistry.NewWithMessage(inference.ErrPlacementFailed,
			"invalid device index").WithDetail("device", dev.Name)
	}
	return n, true, nil
}

// keepResident keeps the model loaded until Close
var keepResident = &api.Duration{Duration: -1 * time.Second}

