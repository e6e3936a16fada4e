// SPDX-License-Identifier: Apache-2.0
// Package alert delivers threshold alerts to external notification channels.
// Delivery is best-effort: a failed dispatch is logged, never propagated to
// the call that triggered it.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Alert describes a crossed error threshold.
type Alert struct {
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Frequency int       `json:"frequency"`
	Threshold int       `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// Sink receives alerts. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// WebhookSink posts alerts as JSON to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Send implements Sink.
func (w *WebhookSink) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes alerts to the structured log. Used when no webhook is
// configured so threshold crossings are still observable.
type LogSink struct{}

// Send implements Sink.
func (LogSink) Send(ctx context.Context, a Alert) error {
	slog.Default().WarnContext(ctx, "alert.threshold",
		slog.String("severity", a.Severity),
		slog.String("category", a.Category),
		slog.String("endpoint", a.Endpoint),
		slog.Int("frequency", a.Frequency),
		slog.Int("threshold", a.Threshold),
		slog.String("message", a.Message),
	)
	return nil
}
