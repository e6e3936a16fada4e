// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/openjurist/lexgate/pkg/cache"
	"github.com/openjurist/lexgate/pkg/errors"
)

// OperationContext identifies the logical operation being recovered, for
// reporting, cache fingerprinting and fallback lookup.
type OperationContext struct {
	// Operation is the tool-level operation name, keying default responses.
	Operation string

	// Endpoint is the upstream endpoint, used for cache fingerprints and
	// error reports.
	Endpoint string

	// Params are the upstream call parameters, part of the fingerprint.
	Params map[string]interface{}

	// Degraded builds the operation's declared degraded payload. Each
	// operation states its own shape; nothing is inferred from its name.
	Degraded func() interface{}
}

// Options tune one ExecuteWithRecovery call.
type Options struct {
	// EnableCircuitBreaker gates the retry loop behind the breaker, so an
	// open circuit short-circuits before any attempt.
	EnableCircuitBreaker bool

	// EnableFallback runs the fallback chain after retries exhaust.
	EnableFallback bool

	// Retry overrides the orchestrator's retry policy for this call.
	Retry *RetryPolicy
}

// DefaultOptions enables both the breaker and the fallback chain.
func DefaultOptions() Options {
	return Options{EnableCircuitBreaker: true, EnableFallback: true}
}

// ErrorReporter receives every unrecovered terminal failure.
type ErrorReporter interface {
	ReportError(err error)
}

// Metrics records one terminal outcome per orchestrated call.
type Metrics interface {
	RecordRequest(ctx context.Context, durationMs float64, fromCache bool)
	RecordFailure(ctx context.Context, durationMs float64)
}

// Orchestrator wraps upstream calls with breaker gating, retry with backoff,
// and a fallback chain of stale cache, registered defaults, and declared
// degraded payloads.
type Orchestrator struct {
	retry    RetryPolicy
	fallback FallbackPolicy
	breaker  *CircuitBreaker
	cache    *cache.ResponseCache
	reporter ErrorReporter
	metrics  Metrics
	defaults map[string]interface{}
	log      *slog.Logger
}

// NewOrchestrator wires an orchestrator. breaker, cache, reporter and metrics
// may each be nil, disabling the corresponding behavior.
func NewOrchestrator(retry RetryPolicy, fallback FallbackPolicy, breaker *CircuitBreaker, c *cache.ResponseCache, reporter ErrorReporter, metrics Metrics) *Orchestrator {
	return &Orchestrator{
		retry:    retry,
		fallback: fallback,
		breaker:  breaker,
		cache:    c,
		reporter: reporter,
		metrics:  metrics,
		defaults: make(map[string]interface{}),
		log:      slog.Default(),
	}
}

// RegisterDefault registers a canned response returned when operation fails
// and no stale cache data exists. Call during wiring, before serving.
func (o *Orchestrator) RegisterDefault(operation string, value interface{}) {
	o.defaults[operation] = value
}

// ExecuteWithRecovery runs op under the orchestrator's resilience policy.
// On success the result is tagged SourceUpstream; recovered results carry
// their fallback source. Terminal failures are reported to the error
// reporter before being returned.
func (o *Orchestrator) ExecuteWithRecovery(ctx context.Context, op func(ctx context.Context) (interface{}, error), opCtx OperationContext, opts Options) (Result, error) {
	start := time.Now()
	policy := o.retry
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	attempt := func(ctx context.Context) (interface{}, error) {
		return policy.Do(ctx, op)
	}

	var value interface{}
	var err error
	if opts.EnableCircuitBreaker && o.breaker != nil {
		value, err = o.breaker.Execute(ctx, attempt)
	} else {
		value, err = attempt(ctx)
	}

	elapsed := float64(time.Since(start).Milliseconds())
	if err == nil {
		if o.metrics != nil {
			o.metrics.RecordRequest(ctx, elapsed, false)
		}
		return Result{Value: value, Source: SourceUpstream}, nil
	}

	if opts.EnableFallback && o.fallback.Enabled {
		if res, ok := o.recover(opCtx); ok {
			o.log.Warn("recovery.fallback",
				slog.String("operation", opCtx.Operation),
				slog.String("endpoint", opCtx.Endpoint),
				slog.String("source", string(res.Source)),
				slog.String("error", err.Error()),
			)
			if o.metrics != nil {
				o.metrics.RecordRequest(ctx, elapsed, res.Source == SourceStaleCache)
			}
			return res, nil
		}
	}

	terminal := errors.AsGatewayError(err)
	if terminal.Endpoint == "" {
		terminal = terminal.WithEndpoint(opCtx.Endpoint)
	}
	terminal = terminal.WithContext("operation", opCtx.Operation)

	if o.reporter != nil {
		o.reporter.ReportError(terminal)
	}
	if o.metrics != nil {
		o.metrics.RecordFailure(ctx, elapsed)
	}
	return Result{}, terminal
}

// recover walks the fallback chain: stale cache, registered default,
// declared degraded payload.
func (o *Orchestrator) recover(opCtx OperationContext) (Result, bool) {
	if o.cache != nil {
		if value, ok := o.cache.GetStale(opCtx.Endpoint, opCtx.Params, o.fallback.StaleCacheWindow); ok {
			return Result{Value: value, Source: SourceStaleCache}, true
		}
	}
	if value, ok := o.defaults[opCtx.Operation]; ok {
		return Result{Value: value, Source: SourceDefault}, true
	}
	if o.fallback.GracefulDegradation && opCtx.Degraded != nil {
		return Result{Value: opCtx.Degraded(), Source: SourceDegraded}, true
	}
	return Result{}, false
}

// BreakerState reports the wired breaker's state, or closed when none is set.
func (o *Orchestrator) BreakerState() CircuitBreakerState {
	if o.breaker == nil {
		return StateClosed
	}
	return o.breaker.State()
}
