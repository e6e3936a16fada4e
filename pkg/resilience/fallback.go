// SPDX-License-Identifier: Apache-2.0
package resilience

import "time"

// FallbackPolicy controls graceful degradation when retries are exhausted.
type FallbackPolicy struct {
	// Enabled turns the fallback chain on.
	Enabled bool

	// StaleCacheWindow bounds how far past its expiry a cached response may
	// be and still serve as a fallback.
	StaleCacheWindow time.Duration

	// GracefulDegradation allows an operation's declared degraded payload
	// to answer when neither stale cache nor a default response exists.
	GracefulDegradation bool
}

// DefaultFallbackPolicy returns the gateway's default fallback configuration.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		Enabled:             true,
		StaleCacheWindow:    10 * time.Minute,
		GracefulDegradation: true,
	}
}

// Source identifies where a recovered result came from, so callers can
// distinguish fresh data from degraded answers.
type Source string

const (
	// SourceUpstream is a fresh upstream response.
	SourceUpstream Source = "upstream"

	// SourceCache is a regular cache hit, applied by the caller before the
	// orchestrator is ever involved.
	SourceCache Source = "cache"

	// SourceStaleCache is expired cache data served as a fallback.
	SourceStaleCache Source = "stale_cache"

	// SourceDefault is a statically registered default response.
	SourceDefault Source = "default"

	// SourceDegraded is the operation's declared degraded payload.
	SourceDegraded Source = "degraded"
)

// Result pairs a recovered value with its provenance.
type Result struct {
	Value  interface{}
	Source Source
}

// Degraded reports whether the result carries anything other than fresh data.
func (r Result) Degraded() bool {
	return r.Source != SourceUpstream && r.Source != SourceCache
}
