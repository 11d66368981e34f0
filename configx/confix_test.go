package configx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(file, []byte("backend:\n  model: from-file\n  device: cpu\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := &EnvSource{
		prefix:   "APP_",
		priority: PriorityEnv,
		environ: func() []string {
			return []string{"APP_BACKEND__MODEL=from-env", "APP_EXTRACT__MAX_NEW_TOKENS=1", "OTHER=x"}
		},
	}

	cfg := New(
		NewMapSource(map[string]any{"backend.model": "default", "extract.max_new_tokens": 512}, "defaults", PriorityDefaults),
		env,
		NewFileSource(file, PriorityFile),
	)
	if err := cfg.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if got := cfg.Get("backend.model").AsString(); got != "from-file" {
		t.Fatalf("file should override env, got %q", got)
	}
	if got := cfg.Get("backend.device").AsString(); got != "cpu" {
		t.Fatalf("unexpected device %q", got)
	}
	if got := cfg.Get("extract.max_new_tokens").AsInt(); got != 1 {
		t.Fatalf("env value \"1\" should stay numeric, got %d", got)
	}
	if cfg.Has("other") {
		t.Fatalf("unprefixed env leaked into config")
	}
}

func TestDotEnvSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport APP_SERVER__ADDR=\":9000\"\nAPP_EXTRACT__STRUCTURED=true\nIGNORED=1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	values, err := NewDotEnvSource(path, "APP_", PriorityDotEnv).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := New(NewMapSource(values, "dotenv", PriorityMap))
	if err := cfg.LoadAll(); err != nil {
		t.Fatal(err)
	}
	if got := cfg.Get("server.addr").AsString(); got != ":9000" {
		t.Fatalf("unexpected addr %q", got)
	}
	if !cfg.Get("extract.structured").AsBool() {
		t.Fatalf("structured should be true")
	}
	if cfg.Has("ignored") {
		t.Fatalf("unprefixed key leaked")
	}
}

func TestBuilderValidationAndRequiredEnv(t *testing.T) {
	_, err := NewBuilder().
		WithDefaults(map[string]any{"a": 1}).
		RequireEnv("VISIONOCR_TEST_SURELY_UNSET_VARIABLE").
		Build()
	if err == nil {
		t.Fatalf("expected missing env error")
	}

	_, err = NewBuilder().
		WithDefaults(map[string]any{"extract.max_new_tokens": 0}).
		WithValidation(func(c Config) error {
			if c.Get("extract.max_new_tokens").AsInt() <= 0 {
				return os.ErrInvalid
			}
			return nil
		}).
		Build()
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValueConversions(t *testing.T) {
	cfg := New(NewMapSource(map[string]any{
		"list":    "a, b,,c",
		"timeout": "1500ms",
		"ratio":   "0.5",
	}, "m", PriorityMap))
	if err := cfg.LoadAll(); err != nil {
		t.Fatal(err)
	}
	if got := cfg.Get("list").AsStringSlice(); len(got) != 3 || got[2] != "c" {
		t.Fatalf("unexpected slice %v", got)
	}
	if got := cfg.Get("timeout").AsDurationDefault(0); got.Milliseconds() != 1500 {
		t.Fatalf("unexpected duration %v", got)
	}
	if got := cfg.Get("ratio").AsFloatDefault(0); got != 0.5 {
		t.Fatalf("unexpected float %v", got)
	}
	if got := cfg.Get("missing").AsIntDefault(7); got != 7 {
		t.Fatalf("default not applied: %d", got)
	}
}
