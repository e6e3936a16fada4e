// SPDX-License-Identifier: Apache-2.0
// Package resilience wraps upstream calls with circuit breaking, retry with
// exponential backoff, and a fallback chain for graceful degradation.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/openjurist/lexgate/pkg/errors"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed means calls pass through normally.
	StateClosed CircuitBreakerState = "closed"

	// StateOpen means calls fail fast without reaching the upstream.
	StateOpen CircuitBreakerState = "open"

	// StateHalfOpen means a limited number of probe calls are allowed.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the upstream dependency for logging and errors.
	Name string

	// FailureThreshold is the number of failures within the monitoring
	// window before the circuit opens.
	FailureThreshold int

	// SuccessThreshold is the number of probe successes in half-open
	// before the circuit closes again.
	SuccessThreshold int

	// ResetTimeout is how long the circuit stays open before allowing
	// a half-open probe.
	ResetTimeout time.Duration

	// MonitoringWindow bounds failure counting while closed; failures
	// older than the window no longer count toward the threshold.
	MonitoringWindow time.Duration

	// CallTimeout bounds each executed operation; exceeding it counts
	// as a failure. Zero disables the per-call timeout.
	CallTimeout time.Duration
}

// CircuitBreaker prevents cascading failures against one upstream dependency.
// One instance per logical dependency, shared across concurrent calls.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	windowStart time.Time
	successes   int
	probes      int
	openedAt    time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: StateClosed,
	}
}

// Execute runs op if the circuit allows it, recording the outcome.
// Returns a CategoryCircuitOpen error without invoking op when the circuit
// is open, and a CategoryTimeout failure when op exceeds the call timeout.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := cb.admit(); err != nil {
		return nil, err
	}

	value, err := cb.run(ctx, op)
	cb.record(err)
	return value, err
}

// admit decides whether a call may proceed, transitioning Open->HalfOpen
// after the reset timeout. State is never held across the upstream call.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cfg.ResetTimeout {
			return cb.openError()
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.probes = 0
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.SuccessThreshold {
			return cb.openError()
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) run(ctx context.Context, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if cb.cfg.CallTimeout <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op(ctx)
		done <- outcome{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CategoryTimeout, "operation exceeded circuit breaker timeout", ctx.Err()).
			WithContext("breaker", cb.cfg.Name).
			WithContext("timeout", cb.cfg.CallTimeout.String())
	case out := <-done:
		return out.value, out.err
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}

	if err != nil {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

// onFailure must be called under lock.
func (cb *CircuitBreaker) onFailure() {
	now := time.Now()
	switch cb.state {
	case StateHalfOpen:
		// A single probe failure reopens the circuit.
		cb.open(now)
	case StateClosed:
		if now.Sub(cb.windowStart) > cb.cfg.MonitoringWindow {
			cb.failures = 0
			cb.windowStart = now
		}
		if cb.failures == 0 {
			cb.windowStart = now
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open(now)
		}
	}
}

// onSuccess must be called under lock.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

// open must be called under lock.
func (cb *CircuitBreaker) open(now time.Time) {
	cb.state = StateOpen
	cb.openedAt = now
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) openError() *errors.GatewayError {
	return errors.New(errors.CategoryCircuitOpen, "circuit breaker open", nil).
		WithContext("breaker", cb.cfg.Name)
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset manually returns the breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
}

// ForceOpen manually trips the breaker, e.g. for maintenance windows.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open(time.Now())
}
