package llamacpp

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/ai/inference"
)

func modelDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("GGUF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFindWeightsByPrecision(t *testing.T) {
	dir := modelDir(t, "model-f16.gguf", "model-Q4_K_M.gguf", "model-q8_0.gguf", "mmproj-model-f16.gguf")
	files, err := ggufFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		p    inference.Precision
		want string
	}{
		{inference.FP16, "model-f16.gguf"},
		{inference.FP32, "model-f16.gguf"},
		{inference.Int4, "model-Q4_K_M.gguf"},
		{inference.Int8, "model-q8_0.gguf"},
	}
	for _, tt := range tests {
		got, err := findWeights(dir, files, tt.p)
		if err != nil {
			t.Fatalf("findWeights(%v): %v", tt.p, err)
		}
		if filepath.Base(got) != tt.want {
			t.Fatalf("findWeights(%v) = %s, want %s", tt.p, filepath.Base(got), tt.want)
		}
	}
}

func TestMissingProjector(t *testing.T) {
	dir := modelDir(t, "model-f16.gguf")
	_, err := New("").LoadProcessor(context.Background(), dir)
	if !errx.IsCode(err, inference.ErrModelNotFound) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestGenerateBuildsCommand(t *testing.T) {
	dir := modelDir(t, "model-f16.gguf", "mmproj.gguf")
	rt := New("sh")
	var gotArgs []string
	rt.run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("Invoice 42</s> trailing"), nil
	}

	ctx := context.Background()
	proc, err := rt.LoadProcessor(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	m, err := rt.LoadModel(ctx, dir, inference.LoadOptions{Precision: inference.FP32})
	if err != nil {
		t.Fatal(err)
	}
	cpu := device.Device{Kind: device.CPU}
	if err := m.To(ctx, cpu); err != nil {
		t.Skipf("sh not on PATH: %v", err)
	}

	in, err := proc.Encode(ctx, image.NewRGBA(image.Rect(0, 0, 2, 2)), "read")
	if err != nil {
		t.Fatal(err)
	}
	gen, err := m.Generate(ctx, in, inference.GenerateOptions{MaxNewTokens: 16, Greedy: true, EOSToken: "</s>"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text, _ := proc.Decode(gen, true)
	if text != "Invoice 42" || gen.DoneReason != "stop" {
		t.Fatalf("unexpected generation %q %+v", text, gen)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-ngl 0", "--temp 0", "-n 16", "-p read", "--mmproj"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestPlacementArgs(t *testing.T) {
	args, err := placementArgs(device.Device{Kind: device.Other, Name: "cuda:1"})
	if err != nil || strings.Join(args, " ") != "-ngl 999 --main-gpu 1" {
		t.Fatalf("unexpected args %v, %v", args, err)
	}
	if _, err := placementArgs(device.Device{Kind: device.Auto}); err == nil {
		t.Fatalf("auto must not be placed")
	}
}
