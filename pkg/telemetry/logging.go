// SPDX-License-Identifier: Apache-2.0
// Package telemetry provides structured logging and OTEL metrics/traces for
// the gateway. Nothing here blocks a request path: logging is fire-and-forget
// and metric recording is in-memory until the periodic exporter flush.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logging owns the process logger and its runtime-adjustable level.
type Logging struct {
	Logger *slog.Logger
	level  *slog.LevelVar
}

// ConfigureSlog builds the gateway logger, installs it as the slog default,
// and returns a handle that can retune the level at runtime (used by the
// config watcher). Output should be stderr for stdio transports: stdout
// carries the RPC stream.
func ConfigureSlog(output io.Writer, level, format string) *Logging {
	lv := &slog.LevelVar{}
	lv.Set(ParseLevel(level))
	opts := &slog.HandlerOptions{Level: lv}

	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base = slog.NewJSONHandler(output, opts)
	default:
		base = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(&traceHandler{next: base})
	slog.SetDefault(logger)
	return &Logging{Logger: logger, level: lv}
}

// SetLevel retunes the logger level without rebuilding handlers.
func (l *Logging) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// traceHandler stamps records with the active span's trace and span IDs so
// log lines correlate with traces.
type traceHandler struct {
	next slog.Handler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name)}
}
