package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	l := New()
	l.SetOutput(buf)
	l.SetColored(false)
	l.SetShowCaller(false)
	return l
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.SetLevel(WarnLevel)

	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN]: shown 1") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestOffLevelSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.SetLevel(OffLevel)
	l.Error("nope")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf).WithPrefix("local")
	l.SetFormat(FormatJSON)

	l.Info("Processed image %d/%d", 2, 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["message"] != "Processed image 2/3" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
	if entry["prefix"] != "local" {
		t.Fatalf("unexpected prefix: %v", entry["prefix"])
	}
}

func TestWithPrefixNests(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf).WithPrefix("local").WithPrefix("ollama")
	l.Info("ready")
	if !strings.Contains(buf.String(), "local/ollama [INFO]: ready") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{" WARNING ", WarnLevel, false},
		{"", InfoLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
