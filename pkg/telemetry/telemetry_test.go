// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConfigureSlogFormats(t *testing.T) {
	var buf bytes.Buffer
	logging := ConfigureSlog(&buf, "info", "json")
	logging.Logger.Info("hello", slog.String("k", "v"))

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected json output, got %q", out)
	}
}

func TestConfigureSlogLevelFilteringAndRetune(t *testing.T) {
	var buf bytes.Buffer
	logging := ConfigureSlog(&buf, "warn", "text")

	logging.Logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info must be suppressed at warn level, got %q", buf.String())
	}

	logging.SetLevel("debug")
	logging.Logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output after retune, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitNoneExporter(t *testing.T) {
	shutdown, err := Init("lexgate-test", "0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown must not fail: %v", err)
	}
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	if _, err := Init("lexgate-test", "0.0.1", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Errorf("expected error for unknown exporter")
	}
}

func TestInitOTLPRequiresEndpoint(t *testing.T) {
	if _, err := Init("lexgate-test", "0.0.1", Config{Exporter: "otlp"}); err == nil {
		t.Errorf("expected error when otlp endpoint is missing")
	}
}

func TestMetricsRecordWithNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	m.RecordRequest(ctx, 12.5, false)
	m.RecordRequest(ctx, 1.0, true)
	m.RecordFailure(ctx, 99.0)
	m.RecordCacheHit(ctx, "search")
	m.RecordCacheMiss(ctx, "search")
	m.RecordBreakerState(ctx, "courtlistener", 2)

	var nilMetrics *Metrics
	nilMetrics.RecordRequest(ctx, 1, false) // nil receiver is a no-op
}
