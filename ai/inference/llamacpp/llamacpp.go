package llamacpp

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/logx"
)

const (
	Name          = "llamacpp"
	DefaultBinary = "llama-mtmd-cli"
)

// precisionPatterns lists GGUF file name markers per precision, best first
var precisionPatterns = map[inference.Precision][]string{
	inference.FP32: {"f32", "f16"},
	inference.FP16: {"f16", "bf16"},
	inference.Int4: {"q4_k_m", "q4_k_s", "q4_0", "q4"},
	inference.Int8: {"q8_0", "q8"},
}

// runFunc executes the binary and returns stdout
type runFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Runtime runs a llama.cpp multimodal CLI build as a subprocess per
// generation. A model identifier is a directory holding the GGUF weights
// and the mmproj projector.
type Runtime struct {
	binary  string
	threads int
	log     *logx.Logger
	run     runFunc
}

// Option configures the runtime
type Option func(*Runtime)

// WithThreads sets the CPU thread count passed with -t
func WithThreads(n int) Option {
	return func(r *Runtime) { r.threads = n }
}

// WithLogger sets the logger
func WithLogger(l *logx.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New creates a runtime using binary, looked up on PATH when not absolute
func New(binary string, opts ...Option) *Runtime {
	if binary == "" {
		binary = DefaultBinary
	}
	r := &Runtime{
		binary: binary,
		log:    logx.Named("llamacpp"),
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Name() string { return Name }

// Available checks the binary can be found
func (r *Runtime) Available(ctx context.Context) error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
			WithDetail("runtime", Name).
			WithDetail("binary", r.binary)
	}
	return ctx.Err()
}

// LoadProcessor locates the projector file of the model directory
func (r *Runtime) LoadProcessor(ctx context.Context, id string) (inference.Processor, error) {
	files, err := ggufFiles(id)
	if err != nil {
		return nil, err
	}
	if _, err := findProjector(id, files); err != nil {
		return nil, err
	}
	return &processor{}, nil
}

// LoadModel picks the weights file matching the requested precision
func (r *Runtime) LoadModel(ctx context.Context, id string, opts inference.LoadOptions) (inference.Model, error) {
	files, err := ggufFiles(id)
	if err != nil {
		return nil, err
	}
	mmproj, err := findProjector(id, files)
	if err != nil {
		return nil, err
	}
	weights, err := findWeights(id, files, opts.Precision)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Using weights %s with projector %s", filepath.Base(weights), filepath.Base(mmproj))

	m := &model{
		rt:        r,
		weights:   weights,
		mmproj:    mmproj,
		precision: opts.Precision,
	}
	if opts.Quantization != inference.QuantNone {
		if err := m.To(ctx, opts.Device); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func ggufFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, inference.ErrRegistry.NewWithMessage(inference.ErrModelNotFound,
			"model directory not found").WithDetail("model", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.gguf"))
	if err != nil {
		return nil, inference.ErrRegistry.NewWithCause(inference.ErrModelNotFound, err).WithDetail("model", dir)
	}
	sort.Strings(matches)
	return matches, nil
}

func isProjector(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "mmproj")
}

func findProjector(dir string, files []string) (string, error) {
	for _, f := range files {
		if isProjector(f) {
			return f, nil
		}
	}
	return "", inference.ErrRegistry.NewWithMessage(inference.ErrModelNotFound,
		"no mmproj projector in model directory").WithDetail("model", dir)
}

func findWeights(dir string, files []string, p inference.Precision) (string, error) {
	for _, pattern := range precisionPatterns[p] {
		for _, f := range files {
			if isProjector(f) {
				continue
			}
			name := strings.ToLower(filepath.Base(f))
			if strings.Contains(name, pattern) {
				return f, nil
			}
		}
	}
	return "", inference.ErrRegistry.NewWithMessage(inference.ErrModelNotFound,
		"no weights for the requested precision").
		WithDetail("model", dir).
		WithDetail("precision", p.String())
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return nil, &commandError{err: err, stderr: tail}
	}
	return stdout.Bytes(), nil
}

type commandError struct {
	err    error
	stderr string
}

func (e *commandError) Error() string {
	if e.stderr == "" {
		return e.err.Error()
	}
	return e.err.Error() + ": " + e.stderr
}

func (e *commandError) Unwrap() error { return e.err }
