// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/openjurist/lexgate/pkg/errors"
)

// RetryPolicy controls retry behavior with exponential backoff and jitter.
// Immutable once handed to an orchestrator; override per call by passing a
// modified copy in Options.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the backoff delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay, before jitter.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// Jitter adds a random delay in [0, Jitter) to each backoff to avoid
	// synchronized retry storms.
	Jitter time.Duration

	// RetryableCategories lists error categories worth retrying.
	RetryableCategories map[errors.Category]bool

	// RetryableStatusCodes lists upstream status codes worth retrying even
	// when the category alone would not qualify.
	RetryableStatusCodes map[int]bool
}

// DefaultRetryPolicy returns the gateway's default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       250 * time.Millisecond,
		RetryableCategories: map[errors.Category]bool{
			errors.CategoryNetwork:     true,
			errors.CategoryRateLimit:   true,
			errors.CategoryExternalAPI: true,
			errors.CategoryTimeout:     true,
		},
		RetryableStatusCodes: map[int]bool{429: true, 502: true, 503: true, 504: true},
	}
}

// WithMaxAttempts returns a copy with MaxAttempts set.
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	p.MaxAttempts = n
	return p
}

// WithInitialDelay returns a copy with InitialDelay set.
func (p RetryPolicy) WithInitialDelay(d time.Duration) RetryPolicy {
	p.InitialDelay = d
	return p
}

// Retryable reports whether err is worth another attempt. Validation and
// circuit-open errors are never retried; otherwise an error qualifies by
// category or by upstream status code.
func (p RetryPolicy) Retryable(err error) bool {
	ge := errors.AsGatewayError(err)
	if ge == nil {
		return false
	}
	if !ge.Recoverable() {
		return false
	}
	if p.RetryableCategories[ge.Category] {
		return true
	}
	if ge.StatusCode != 0 && p.RetryableStatusCodes[ge.StatusCode] {
		return true
	}
	return false
}

// Delay computes the backoff before attempt n+1 (n >= 1):
// min(InitialDelay * Multiplier^(n-1), MaxDelay) plus random jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Do executes op with retry, returning the result of the first success or
// the last error once attempts are exhausted. Cancellation is checked before
// every attempt and while sleeping out a backoff delay.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, errors.New(errors.CategoryTimeout, "context canceled during retry", ctx.Err()).
				WithContext("attempt", attempt)
		}

		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !p.Retryable(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(errors.CategoryTimeout, "context canceled during backoff", ctx.Err()).
				WithContext("attempt", attempt)
		case <-time.After(p.Delay(attempt)):
		}
	}
	return nil, lastErr
}
