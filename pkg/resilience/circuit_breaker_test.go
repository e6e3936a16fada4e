// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/openjurist/lexgate/pkg/errors"
)

func failingOp(ctx context.Context) (interface{}, error) {
	return nil, errors.New(errors.CategoryExternalAPI, "upstream down", nil)
}

func okOp(ctx context.Context) (interface{}, error) {
	return "ok", nil
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(context.Background(), failingOp); err == nil {
			t.Fatalf("expected failure on attempt %d", i+1)
		}
	}
	if cb.State() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.State())
	}
}

func TestCircuitBreakerFailsFastWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	_, _ = cb.Execute(context.Background(), failingOp)

	invoked := false
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	})

	if invoked {
		t.Errorf("open circuit must not invoke the operation")
	}
	if !errors.IsCircuitOpen(err) {
		t.Errorf("expected circuit-open error, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenProbeAndClose(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
	})
	_, _ = cb.Execute(context.Background(), failingOp)
	if cb.State() != StateOpen {
		t.Fatalf("expected open")
	}

	time.Sleep(30 * time.Millisecond)

	// First probe after the reset timeout must reach the operation.
	invoked := false
	if _, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked = true
		return "ok", nil
	}); err != nil {
		t.Fatalf("unexpected probe error: %v", err)
	}
	if !invoked {
		t.Fatalf("probe call should invoke the operation")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected half-open after first probe success, got %s", cb.State())
	}

	if _, err := cb.Execute(context.Background(), okOp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after %d probe successes, got %s", 2, cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 3,
		ResetTimeout:     10 * time.Millisecond,
	})
	_, _ = cb.Execute(context.Background(), failingOp)
	time.Sleep(20 * time.Millisecond)

	_, _ = cb.Execute(context.Background(), failingOp)
	if cb.State() != StateOpen {
		t.Errorf("expected reopen on half-open failure, got %s", cb.State())
	}
}

func TestCircuitBreakerMonitoringWindow(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		MonitoringWindow: 30 * time.Millisecond,
		ResetTimeout:     time.Minute,
	})

	_, _ = cb.Execute(context.Background(), failingOp)
	_, _ = cb.Execute(context.Background(), failingOp)
	time.Sleep(50 * time.Millisecond)
	// Window elapsed; stale failures no longer count.
	_, _ = cb.Execute(context.Background(), failingOp)

	if cb.State() != StateClosed {
		t.Errorf("expected closed, failures outside window must not trip, got %s", cb.State())
	}
}

func TestCircuitBreakerCallTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		CallTimeout:      20 * time.Millisecond,
		ResetTimeout:     time.Minute,
	})

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		time.Sleep(100 * time.Millisecond)
		return "late", nil
	})
	if errors.CategoryOf(err) != errors.CategoryTimeout {
		t.Errorf("expected timeout error, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("timeout must count as a failure, got state %s", cb.State())
	}
}

func TestCircuitBreakerResetAndForceOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 1, ResetTimeout: time.Minute})

	cb.ForceOpen()
	if cb.State() != StateOpen {
		t.Errorf("expected open after ForceOpen")
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after Reset")
	}
	if _, err := cb.Execute(context.Background(), okOp); err != nil {
		t.Errorf("unexpected error after reset: %v", err)
	}
}
