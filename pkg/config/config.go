// SPDX-License-Identifier: Apache-2.0
// Package config loads LexGate configuration from YAML files and environment
// variables (LEXGATE_ prefix), with sane defaults for every section.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	CourtListener CourtListenerConfig `koanf:"courtlistener"`
	Cache         CacheConfig         `koanf:"cache"`
	Breaker       BreakerConfig       `koanf:"breaker"`
	Retry         RetryConfig         `koanf:"retry"`
	Fallback      FallbackConfig      `koanf:"fallback"`
	Errors        ErrorsConfig        `koanf:"errors"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ServerConfig struct {
	Transport string `koanf:"transport"` // stdio, http
	Addr      string `koanf:"addr"`
}

type CourtListenerConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type CacheConfig struct {
	Enabled       bool          `koanf:"enabled"`
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	MaxEntries    int           `koanf:"max_entries"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	StaleGrace    time.Duration `koanf:"stale_grace"`
}

type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold int           `koanf:"failure_threshold"`
	SuccessThreshold int           `koanf:"success_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
	MonitoringWindow time.Duration `koanf:"monitoring_window"`
	CallTimeout      time.Duration `koanf:"call_timeout"`
}

type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
	Multiplier   float64       `koanf:"multiplier"`
	Jitter       time.Duration `koanf:"jitter"`
}

type FallbackConfig struct {
	Enabled             bool          `koanf:"enabled"`
	StaleCacheWindow    time.Duration `koanf:"stale_cache_window"`
	GracefulDegradation bool          `koanf:"graceful_degradation"`
}

type ErrorsConfig struct {
	AggregationInterval time.Duration `koanf:"aggregation_interval"`
	Retention           time.Duration `koanf:"retention"`
	WebhookURL          string        `koanf:"webhook_url"`
	CriticalThreshold   int           `koanf:"critical_threshold"`
	HighThreshold       int           `koanf:"high_threshold"`
	MediumThreshold     int           `koanf:"medium_threshold"`
	LowThreshold        int           `koanf:"low_threshold"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// Load reads configuration from the optional YAML file at path, then
// overlays LEXGATE_-prefixed environment variables
// (LEXGATE_COURTLISTENER_API_KEY -> courtlistener.api_key).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("server.transport", "stdio")
	k.Set("server.addr", ":8080")

	k.Set("courtlistener.base_url", "https://www.courtlistener.com/api/rest/v4")
	k.Set("courtlistener.timeout", "30s")

	k.Set("cache.enabled", true)
	k.Set("cache.default_ttl", "5m")
	k.Set("cache.max_entries", 1000)
	k.Set("cache.sweep_interval", "60s")
	k.Set("cache.stale_grace", "10m")

	k.Set("breaker.enabled", true)
	k.Set("breaker.failure_threshold", 5)
	k.Set("breaker.success_threshold", 2)
	k.Set("breaker.reset_timeout", "30s")
	k.Set("breaker.monitoring_window", "60s")
	k.Set("breaker.call_timeout", "30s")

	k.Set("retry.max_attempts", 3)
	k.Set("retry.initial_delay", "500ms")
	k.Set("retry.max_delay", "10s")
	k.Set("retry.multiplier", 2.0)
	k.Set("retry.jitter", "250ms")

	k.Set("fallback.enabled", true)
	k.Set("fallback.stale_cache_window", "10m")
	k.Set("fallback.graceful_degradation", true)

	k.Set("errors.aggregation_interval", "5m")
	k.Set("errors.retention", "720h")
	k.Set("errors.critical_threshold", 1)
	k.Set("errors.high_threshold", 5)
	k.Set("errors.medium_threshold", 20)
	k.Set("errors.low_threshold", 100)

	k.Set("telemetry.exporter", "none")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Sections are single words, so only the first underscore separates the
	// section from the key: LEXGATE_COURTLISTENER_API_KEY -> courtlistener.api_key.
	if err := k.Load(env.Provider("LEXGATE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LEXGATE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
