package applog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_JSONOutputCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer InitDiscard()

	Component("graph_store").Info("[GraphStore] node added", "node_id", "7")
	Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, `"component":"graph_store"`) {
		t.Fatalf("missing component field: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message must be filtered at info level: %s", out)
	}
	t.Logf("✅ %s", strings.TrimSpace(out))
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
	l := With("session_id", "s1")
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected logger stored in context")
	}
}
