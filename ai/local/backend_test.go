package local

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
)

type fakeRuntime struct {
	failProcessor error
	failModel     error
	failTo        error
	failGenerate  error
	failClose     error
	noUsage       bool
	output        string

	calls   []string
	model   *fakeModel
	encoded []inference.Inputs
}

func (f *fakeRuntime) Name() string                      { return "fake" }
func (f *fakeRuntime) Available(ctx context.Context) error { return nil }

func (f *fakeRuntime) LoadProcessor(ctx context.Context, id string) (inference.Processor, error) {
	f.calls = append(f.calls, "processor")
	if f.failProcessor != nil {
		return nil, f.failProcessor
	}
	return &fakeProcessor{rt: f}, nil
}

func (f *fakeRuntime) LoadModel(ctx context.Context, id string, opts inference.LoadOptions) (inference.Model, error) {
	f.calls = append(f.calls, "model:"+opts.Precision.String())
	if f.failModel != nil {
		return nil, f.failModel
	}
	f.model = &fakeModel{rt: f, precision: opts.Precision}
	return f.model, nil
}

type fakeProcessor struct{ rt *fakeRuntime }

func (p *fakeProcessor) Encode(ctx context.Context, img image.Image, prompt string) (inference.Inputs, error) {
	data, err := inference.EncodePNG(img)
	if err != nil {
		return inference.Inputs{}, err
	}
	in := inference.Inputs{Prompt: prompt, Images: [][]byte{data}}
	p.rt.encoded = append(p.rt.encoded, in)
	return in, nil
}

func (p *fakeProcessor) Decode(gen inference.Generation, skip bool) (string, error) {
	if !skip {
		return gen.Text, nil
	}
	return inference.StripSpecialTokens(gen.Text, p.SpecialTokens().All()), nil
}

func (p *fakeProcessor) SpecialTokens() inference.SpecialTokens {
	return inference.SpecialTokens{Pad: "<pad>", EOS: "</s>"}
}

type fakeModel struct {
	rt        *fakeRuntime
	precision inference.Precision
	dev       device.Device
	eval      bool
	closed    bool
}

func (m *fakeModel) To(ctx context.Context, dev device.Device) error {
	m.rt.calls = append(m.rt.calls, "to:"+dev.String())
	if m.rt.failTo != nil {
		return m.rt.failTo
	}
	m.dev = dev
	return nil
}

func (m *fakeModel) Eval() {
	m.rt.calls = append(m.rt.calls, "eval")
	m.eval = true
}

func (m *fakeModel) Generate(ctx context.Context, in inference.Inputs, opts inference.GenerateOptions) (inference.Generation, error) {
	if m.rt.failGenerate != nil {
		return inference.Generation{}, m.rt.failGenerate
	}
	if !opts.Greedy || opts.EOSToken != "</s>" || opts.PadToken != "<pad>" {
		return inference.Generation{}, errors.New("decoding options not passed")
	}
	if m.rt.noUsage {
		return inference.Generation{Text: m.rt.output}, nil
	}
	return inference.Generation{Text: m.rt.output, PromptTokens: 10, CompletionTokens: 4}, nil
}

func (m *fakeModel) Device() device.Device          { return m.dev }
func (m *fakeModel) Precision() inference.Precision { return m.precision }
func (m *fakeModel) Close() error                   { m.closed = true; return m.rt.failClose }

type fixedProber struct{ cuda bool }

func (p fixedProber) CUDA() bool { return p.cuda }
func (p fixedProber) MPS() bool  { return false }

func quiet() *logx.Logger {
	l := logx.New()
	l.SetLevel(logx.OffLevel)
	return l
}

func newBackend(t *testing.T, rt *fakeRuntime, cfg Config) (*Backend, error) {
	t.Helper()
	return New(context.Background(), cfg,
		WithRuntime(rt),
		WithResolver(device.NewResolver(fixedProber{})),
		WithLogger(quiet()))
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 3))
	for x := 0; x < 6; x++ {
		img.Set(x, 1, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSequence(t *testing.T) {
	rt := &fakeRuntime{output: "ok"}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	want := []string{"processor", "model:fp32", "to:cpu", "eval"}
	if len(rt.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rt.calls, want)
	}
	for i := range want {
		if rt.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", rt.calls, want)
		}
	}
	if b.Device().Kind != device.CPU || b.Info().Precision != "fp32" {
		t.Fatalf("unexpected info %+v", b.Info())
	}
}

func TestQuantizedLoadSkipsExplicitPlacement(t *testing.T) {
	rt := &fakeRuntime{output: "ok"}
	b, err := New(context.Background(), Config{Model: "m", Quantization: inference.QuantInt8},
		WithRuntime(rt),
		WithResolver(device.NewResolver(fixedProber{cuda: true})),
		WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	for _, c := range rt.calls {
		if c == "to:cuda" {
			t.Fatalf("quantized load must not call To: %v", rt.calls)
		}
	}
	if rt.calls[1] != "model:int8" {
		t.Fatalf("unexpected precision call %v", rt.calls)
	}
}

func TestConstructionIsAllOrNothing(t *testing.T) {
	cause := errors.New("out of memory")
	tests := []struct {
		name  string
		rt    *fakeRuntime
		stage string
	}{
		{"processor", &fakeRuntime{failProcessor: cause}, "processor"},
		{"weights", &fakeRuntime{failModel: cause}, "weights"},
		{"placement", &fakeRuntime{failTo: cause}, "placement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := newBackend(t, tt.rt, Config{Model: "m"})
			if b != nil {
				t.Fatalf("expected no backend on failure")
			}
			if !errx.IsCode(err, ErrLoadFailed) || !errors.Is(err, cause) {
				t.Fatalf("expected load failure wrapping the cause, got %v", err)
			}
			if e, _ := errx.As(err); e.Details["stage"] != tt.stage || e.Details["model"] != "m" {
				t.Fatalf("unexpected details %v", e.Details)
			}
			if tt.rt.model != nil && !tt.rt.model.closed {
				t.Fatalf("partially loaded model not released")
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Runtime: "llamacpp"}, WithLogger(quiet()))
	if !errx.IsCode(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if _, err := ParseConfig("m", "cuda:", "", ""); !errx.IsCode(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid device config, got %v", err)
	}
	if _, err := ParseConfig("m", "", "3bit", ""); !errx.IsCode(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid quantization config, got %v", err)
	}
}

func TestPromptEchoIsStripped(t *testing.T) {
	rt := &fakeRuntime{output: ocr.DefaultPrompt + "\n  Rechnung Nr. 42</s><pad>"}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	res, err := b.Extract(context.Background(), imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Rechnung Nr. 42" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Usage.PromptTokens != 10 || res.Usage.TotalTokens != 14 {
		t.Fatalf("unexpected usage %+v", res.Usage)
	}
}

func TestDefaultPromptEquivalence(t *testing.T) {
	rt := &fakeRuntime{output: "text"}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()
	src := imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2)))

	a, err := b.Extract(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.Extract(ctx, src, ocr.WithPrompt(ocr.DefaultPrompt))
	if err != nil {
		t.Fatal(err)
	}
	if a.Text != c.Text || rt.encoded[0].Prompt != rt.encoded[1].Prompt || rt.encoded[0].Prompt != ocr.DefaultPrompt {
		t.Fatalf("default prompt differs from explicit default: %q vs %q", rt.encoded[0].Prompt, rt.encoded[1].Prompt)
	}
}

func TestStructuredTextEqualsPlainText(t *testing.T) {
	rt := &fakeRuntime{output: "Hallo Welt"}
	b, err := newBackend(t, rt, Config{Model: "vision-model"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()
	src := imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2)))

	plain, err := b.Extract(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	structured, err := b.Extract(ctx, src, ocr.WithStructured(true))
	if err != nil {
		t.Fatal(err)
	}
	rec := structured.Record
	if plain.Record != nil || rec == nil {
		t.Fatalf("record presence wrong: plain=%v structured=%v", plain.Record, rec)
	}
	if rec.Text != plain.Text || rec.Model != "vision-model" || rec.Backend != "local" || rec.Confidence != 1.0 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPathAndDecodedImageExtractIdentically(t *testing.T) {
	rt := &fakeRuntime{output: "text"}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()

	path := writePNG(t, t.TempDir(), "page.png")
	data, _ := os.ReadFile(path)
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Extract(ctx, imagex.Path(path)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Extract(ctx, imagex.Image(decoded)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rt.encoded[0].Images[0], rt.encoded[1].Images[0]) {
		t.Fatalf("path and decoded image produced different model inputs")
	}
}

func TestExtractErrors(t *testing.T) {
	rt := &fakeRuntime{failGenerate: errors.New("cuda error")}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, err = b.Extract(ctx, imagex.Path(filepath.Join(t.TempDir(), "missing.png")))
	if !errx.IsCode(err, imagex.ErrNotFound) || errx.IsCode(err, ErrExtractionFailed) {
		t.Fatalf("image errors must stay image errors, got %v", err)
	}

	_, err = b.Extract(ctx, imagex.Image(image.NewRGBA(image.Rect(0, 0, 1, 1))))
	if !errx.IsCode(err, ErrExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !rt.model.closed {
		t.Fatalf("Close did not release the model")
	}
	_, err = b.Extract(ctx, imagex.Image(image.NewRGBA(image.Rect(0, 0, 1, 1))))
	if !errx.IsCode(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestBatchOneOfThreeFails(t *testing.T) {
	rt := &fakeRuntime{output: "page text"}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	dir := t.TempDir()
	srcs := []imagex.Source{
		imagex.Path(writePNG(t, dir, "1.png")),
		imagex.Path(filepath.Join(dir, "corrupt.png")),
		imagex.Path(writePNG(t, dir, "3.png")),
	}

	plain := b.ExtractBatch(context.Background(), srcs)
	if len(plain) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(plain))
	}
	if plain[0].Value() != "page text" || plain[1].Value() != "" || plain[2].Value() != "page text" {
		t.Fatalf("unexpected values %q %q %q", plain[0].Value(), plain[1].Value(), plain[2].Value())
	}

	structured := b.ExtractBatch(context.Background(), srcs, ocr.WithStructured(true), ocr.WithBatchSize(2))
	failed := structured[1].Value().(ocr.Record)
	if failed.Text != "" || failed.Error == "" || failed.Backend != "local" {
		t.Fatalf("unexpected failure record %+v", failed)
	}
	if ok := structured[2].Value().(ocr.Record); ok.Text != "page text" || ok.Confidence != 1.0 {
		t.Fatalf("unexpected success record %+v", ok)
	}
}

func TestAutoResolutionIsStableAcrossBackends(t *testing.T) {
	resolver := device.NewResolver(device.NewSystemProber())
	var devs []device.Device
	for i := 0; i < 2; i++ {
		b, err := New(context.Background(), Config{Model: "m"},
			WithRuntime(&fakeRuntime{output: "x"}),
			WithResolver(resolver),
			WithLogger(quiet()))
		if err != nil {
			t.Fatal(err)
		}
		devs = append(devs, b.Device())
		b.Close()
	}
	if devs[0] != devs[1] {
		t.Fatalf("auto resolved differently: %v vs %v", devs[0], devs[1])
	}
}

func TestEachBackendLoadsItsOwnModel(t *testing.T) {
	rt := &fakeRuntime{output: "page text"}
	cfg := Config{Model: "m"}

	first, err := newBackend(t, rt, cfg)
	if err != nil {
		t.Fatal(err)
	}
	firstModel := rt.model
	second, err := newBackend(t, rt, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	var processors, models int
	for _, c := range rt.calls {
		switch {
		case c == "processor":
			processors++
		case strings.HasPrefix(c, "model:"):
			models++
		}
	}
	if processors != 2 || models != 2 {
		t.Fatalf("expected two processor and two model loads, got %v", rt.calls)
	}
	if first == second || firstModel == rt.model {
		t.Fatalf("backends share a loaded model")
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if rt.model.closed {
		t.Fatalf("closing one backend released the other's model")
	}
	res, err := second.Extract(context.Background(), imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	if err != nil || res.Text != "page text" {
		t.Fatalf("second backend unusable after first closed: %q %v", res.Text, err)
	}
}

func TestCloseReportsReleaseFailure(t *testing.T) {
	rt := &fakeRuntime{output: "x", failClose: errors.New("unload refused")}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}

	err = b.Close()
	if !errx.IsCode(err, ErrReleaseFailed) || errx.IsCode(err, ErrLoadFailed) {
		t.Fatalf("expected release failure, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err = b.Extract(context.Background(), imagex.Image(image.NewRGBA(image.Rect(0, 0, 1, 1))))
	if !errx.IsCode(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

// blackholeProxy routes outbound HTTP through a listener that accepts
// connections and never answers
func blackholeProxy(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, c)
		}
	}()
	proxy := "http://" + ln.Addr().String()
	t.Setenv("HTTPS_PROXY", proxy)
	t.Setenv("HTTP_PROXY", proxy)
	t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())
}

func TestExtractEstimatesUsageWithoutNetwork(t *testing.T) {
	blackholeProxy(t)
	rt := &fakeRuntime{output: "a,b,c,d", noUsage: true}
	b, err := newBackend(t, rt, Config{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	type result struct {
		res ocr.Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := b.Extract(context.Background(), imagex.Image(image.NewRGBA(image.Rect(0, 0, 2, 2))))
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Extract: %v", r.err)
		}
		u := r.res.Usage
		// one whitespace separated word, several BPE tokens
		if u.PromptTokens == 0 || u.CompletionTokens <= 1 || u.TotalTokens != u.PromptTokens+u.CompletionTokens {
			t.Fatalf("usage not estimated from the encoding: %+v", u)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Extract blocked while estimating usage")
	}
}
