// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks request outcomes, cache effectiveness, and circuit state
// for the gateway. One terminal outcome is recorded per orchestrated call.
type Metrics struct {
	requestCounter metric.Int64Counter
	failureCounter metric.Int64Counter
	latencyMs      metric.Float64Histogram
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	breakerState   metric.Int64Gauge
}

// NewMetrics registers the gateway's instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("lexgate/gateway")

	requestCounter, err := meter.Int64Counter(
		"lexgate.requests.total",
		metric.WithDescription("Orchestrated calls that produced a result"),
	)
	if err != nil {
		return nil, err
	}
	failureCounter, err := meter.Int64Counter(
		"lexgate.requests.failed",
		metric.WithDescription("Orchestrated calls that terminally failed"),
	)
	if err != nil {
		return nil, err
	}
	latencyMs, err := meter.Float64Histogram(
		"lexgate.request.duration",
		metric.WithDescription("Terminal call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter(
		"lexgate.cache.hits",
		metric.WithDescription("Tool calls answered from the response cache"),
	)
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter(
		"lexgate.cache.misses",
		metric.WithDescription("Tool calls that had to reach the upstream"),
	)
	if err != nil {
		return nil, err
	}
	breakerState, err := meter.Int64Gauge(
		"lexgate.breaker.state",
		metric.WithDescription("Circuit breaker state (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestCounter: requestCounter,
		failureCounter: failureCounter,
		latencyMs:      latencyMs,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		breakerState:   breakerState,
	}, nil
}

// RecordRequest records a successful terminal outcome.
func (m *Metrics) RecordRequest(ctx context.Context, durationMs float64, fromCache bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("from_cache", fromCache))
	m.requestCounter.Add(ctx, 1, attrs)
	m.latencyMs.Record(ctx, durationMs, attrs)
}

// RecordFailure records a terminal failure.
func (m *Metrics) RecordFailure(ctx context.Context, durationMs float64) {
	if m == nil {
		return
	}
	m.failureCounter.Add(ctx, 1)
	m.latencyMs.Record(ctx, durationMs, metric.WithAttributes(attribute.Bool("failed", true)))
}

// RecordCacheHit counts a tool call answered from cache.
func (m *Metrics) RecordCacheHit(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordCacheMiss counts a tool call that reached the upstream.
func (m *Metrics) RecordCacheMiss(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordBreakerState publishes the breaker's state for dashboards.
func (m *Metrics) RecordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(attribute.String("breaker", name)))
}
