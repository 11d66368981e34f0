package ollama

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/ollama/ollama/api"
)

type fakeServer struct {
	mu        sync.Mutex
	models    map[string]string // name -> quantization level
	generates []api.GenerateRequest
	creates   []api.CreateRequest
}

func newFakeServer(t *testing.T, models map[string]string) (*fakeServer, *Runtime) {
	t.Helper()
	fs := &fakeServer{models: models}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(srv.Close)

	rt, err := New(srv.URL, srv.Client(), WithPull(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs, rt
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/":
		w.WriteHeader(http.StatusOK)
	case "/api/show":
		var req api.ShowRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		level, ok := fs.models[req.Model]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"details": map[string]any{"families": []string{"llama", "clip"}, "quantization_level": level},
		})
	case "/api/create":
		var req api.CreateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.creates = append(fs.creates, req)
		fs.models[req.Model] = req.Quantize
		_, _ = w.Write([]byte(`{"status":"success"}` + "\n"))
	case "/api/generate":
		var req api.GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.generates = append(fs.generates, req)
		resp := map[string]any{"model": req.Model, "done": true, "done_reason": "load"}
		if req.Prompt != "" {
			resp = map[string]any{
				"model":             req.Model,
				"response":          "Hello world<|im_end|>",
				"done":              true,
				"done_reason":       "stop",
				"prompt_eval_count": 12,
				"eval_count":        3,
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestAvailable(t *testing.T) {
	_, rt := newFakeServer(t, nil)
	if err := rt.Available(context.Background()); err != nil {
		t.Fatalf("Available: %v", err)
	}

	down, err := New("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := down.Available(context.Background()); !errx.IsCode(err, inference.ErrRuntimeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestMissingModelWithoutPull(t *testing.T) {
	_, rt := newFakeServer(t, map[string]string{})
	_, err := rt.LoadProcessor(context.Background(), "ghost")
	if !errx.IsCode(err, inference.ErrModelNotFound) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestLoadPlaceGenerateClose(t *testing.T) {
	fs, rt := newFakeServer(t, map[string]string{"vision": "F16"})
	ctx := context.Background()
	cpu := device.Device{Kind: device.CPU}

	proc, err := rt.LoadProcessor(ctx, "vision")
	if err != nil {
		t.Fatalf("LoadProcessor: %v", err)
	}
	m, err := rt.LoadModel(ctx, "vision", inference.LoadOptions{Device: cpu, Precision: inference.FP32})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if err := m.To(ctx, cpu); err != nil {
		t.Fatalf("To: %v", err)
	}
	m.Eval()

	in, err := proc.Encode(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4)), "read it")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gen, err := m.Generate(ctx, in, inference.GenerateOptions{MaxNewTokens: 64, Greedy: true, EOSToken: "<|endoftext|>"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text, _ := proc.Decode(gen, true)
	if text != "Hello world" {
		t.Fatalf("unexpected text %q", text)
	}
	if gen.PromptTokens != 12 || gen.CompletionTokens != 3 {
		t.Fatalf("unexpected token counts %+v", gen)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.generates) != 3 {
		t.Fatalf("expected warm-up, generate and unload calls, got %d", len(fs.generates))
	}
	g := fs.generates[1]
	if len(g.Images) != 1 {
		t.Fatalf("image not sent")
	}
	if g.Options["num_gpu"] != float64(0) || g.Options["temperature"] != float64(0) || g.Options["num_predict"] != float64(64) {
		t.Fatalf("unexpected options %v", g.Options)
	}
	if unload := fs.generates[2]; unload.KeepAlive == nil || unload.KeepAlive.Duration != 0 {
		t.Fatalf("unload must send keep_alive 0, got %+v", unload.KeepAlive)
	}
}

func TestQuantizedLoadCreatesDerivedModel(t *testing.T) {
	fs, rt := newFakeServer(t, map[string]string{"vision:7b": "F16"})
	ctx := context.Background()
	gpu := device.Device{Kind: device.CUDA}

	m, err := rt.LoadModel(ctx, "vision:7b", inference.LoadOptions{
		Device:       gpu,
		Precision:    inference.Int4,
		Quantization: inference.QuantInt4,
	})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if m.Device() != gpu || m.Precision() != inference.Int4 {
		t.Fatalf("unexpected placement %v %v", m.Device(), m.Precision())
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.creates) != 1 {
		t.Fatalf("expected one create call, got %d", len(fs.creates))
	}
	c := fs.creates[0]
	if c.From != "vision:7b" || c.Quantize != "q4_K_M" || c.Model != "vision:7b-q4_k_m" {
		t.Fatalf("unexpected create request %+v", c)
	}
	if _, ok := fs.generates[0].Options["num_gpu"]; ok {
		t.Fatalf("accelerator placement must leave num_gpu to the server")
	}
}

func TestExplicitGPUIndexSetsMainGPU(t *testing.T) {
	fs, rt := newFakeServer(t, map[string]string{"vision": "F16"})
	ctx := context.Background()
	gpu1 := device.Device{Kind: device.Other, Name: "cuda:1"}

	m, err := rt.LoadModel(ctx, "vision", inference.LoadOptions{Device: gpu1, Precision: inference.FP16})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if err := m.To(ctx, gpu1); err != nil {
		t.Fatalf("To: %v", err)
	}
	if _, err := m.Generate(ctx, inference.Inputs{Prompt: "read"}, inference.GenerateOptions{MaxNewTokens: 8}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, g := range fs.generates {
		if g.Options["main_gpu"] != float64(1) {
			t.Fatalf("request %d: expected main_gpu 1, got %v", i, g.Options)
		}
	}
}

func TestInvalidGPUIndexFailsPlacement(t *testing.T) {
	_, rt := newFakeServer(t, map[string]string{"vision": "F16"})
	ctx := context.Background()
	bad := device.Device{Kind: device.Other, Name: "cuda:x"}

	m, err := rt.LoadModel(ctx, "vision", inference.LoadOptions{Device: bad, Precision: inference.FP16})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if err := m.To(ctx, bad); !errx.IsCode(err, inference.ErrPlacementFailed) {
		t.Fatalf("expected placement failure, got %v", err)
	}
}
