// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for LexGate.
// Every failure crossing the resilience layer is a *GatewayError so that the
// retry, fallback and aggregation code can classify it without string matching.
package errors

import (
	"encoding/json"
	"fmt"
)

// Category classifies gateway errors for retry and aggregation decisions.
type Category string

const (
	// CategoryNetwork indicates a transport-level failure reaching the upstream.
	CategoryNetwork Category = "network"

	// CategoryRateLimit indicates the upstream rejected the call with a rate limit.
	CategoryRateLimit Category = "rate_limit"

	// CategoryExternalAPI indicates an upstream 5xx-equivalent failure.
	CategoryExternalAPI Category = "external_api"

	// CategoryTimeout indicates an operation exceeded its time limit.
	CategoryTimeout Category = "timeout"

	// CategoryValidation indicates caller input was invalid. Never retried.
	CategoryValidation Category = "validation"

	// CategoryCircuitOpen is raised synthetically by an open circuit breaker.
	CategoryCircuitOpen Category = "circuit_open"

	// CategoryUnknown covers errors that match no other category.
	CategoryUnknown Category = "unknown"
)

// Severity grades an error for alert thresholds.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// GatewayError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type GatewayError struct {
	Category   Category
	Severity   Severity
	Message    string
	Err        error
	Endpoint   string
	StatusCode int
	Context    map[string]interface{}
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *GatewayError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"category": string(e.Category),
		"severity": string(e.Severity),
		"message":  e.Message,
	}
	if e.Err != nil {
		out["cause"] = e.Err.Error()
	}
	if e.Endpoint != "" {
		out["endpoint"] = e.Endpoint
	}
	if e.StatusCode != 0 {
		out["status_code"] = e.StatusCode
	}
	if len(e.Context) > 0 {
		out["context"] = e.Context
	}
	return json.Marshal(out)
}

// New creates a new GatewayError with the given category, message, and cause.
// Severity defaults per category and can be overridden with WithSeverity.
func New(category Category, msg string, cause error) *GatewayError {
	return &GatewayError{
		Category: category,
		Severity: defaultSeverity(category),
		Message:  msg,
		Err:      cause,
		Context:  make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *GatewayError) WithContext(key string, value interface{}) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithEndpoint records the upstream endpoint the error occurred on.
func (e *GatewayError) WithEndpoint(endpoint string) *GatewayError {
	e.Endpoint = endpoint
	return e
}

// WithStatusCode records the upstream HTTP status, when one exists.
func (e *GatewayError) WithStatusCode(code int) *GatewayError {
	e.StatusCode = code
	return e
}

// WithSeverity overrides the category's default severity.
func (e *GatewayError) WithSeverity(sev Severity) *GatewayError {
	e.Severity = sev
	return e
}

// AsGatewayError converts err to a *GatewayError, wrapping foreign errors
// under CategoryUnknown. Returns nil for nil.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*GatewayError); ok {
		return ge
	}
	return New(CategoryUnknown, "wrapped error", err)
}

// CategoryOf returns the category of err, or CategoryUnknown for foreign errors.
func CategoryOf(err error) Category {
	if ge, ok := err.(*GatewayError); ok {
		return ge.Category
	}
	return CategoryUnknown
}

// Recoverable reports whether retrying could plausibly succeed. Validation
// failures and breaker fail-fasts never recover on retry; the retry policy
// applies its own, narrower category set on top of this.
func (e *GatewayError) Recoverable() bool {
	switch e.Category {
	case CategoryValidation, CategoryCircuitOpen:
		return false
	default:
		return true
	}
}

// IsCircuitOpen reports whether err is the breaker's fail-fast error.
func IsCircuitOpen(err error) bool {
	return CategoryOf(err) == CategoryCircuitOpen
}

// FromHTTPStatus maps an upstream HTTP status code to a GatewayError.
func FromHTTPStatus(status int, endpoint string, cause error) *GatewayError {
	switch {
	case status == 429:
		return New(CategoryRateLimit, "upstream rate limit exceeded", cause).
			WithEndpoint(endpoint).WithStatusCode(status)
	case status >= 500:
		return New(CategoryExternalAPI, "upstream server error", cause).
			WithEndpoint(endpoint).WithStatusCode(status)
	case status >= 400:
		return New(CategoryValidation, "upstream rejected request", cause).
			WithEndpoint(endpoint).WithStatusCode(status)
	default:
		return New(CategoryUnknown, fmt.Sprintf("unexpected upstream status %d", status), cause).
			WithEndpoint(endpoint).WithStatusCode(status)
	}
}

func defaultSeverity(category Category) Severity {
	switch category {
	case CategoryCircuitOpen:
		return SeverityCritical
	case CategoryExternalAPI, CategoryTimeout:
		return SeverityHigh
	case CategoryNetwork, CategoryRateLimit:
		return SeverityMedium
	case CategoryValidation:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
