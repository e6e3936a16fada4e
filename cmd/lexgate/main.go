// SPDX-License-Identifier: Apache-2.0

// Command lexgate serves the CourtListener legal research tools over MCP,
// wrapping every upstream call in a response cache, a circuit breaker, retry
// with backoff, and a fallback chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openjurist/lexgate/pkg/aggregator"
	"github.com/openjurist/lexgate/pkg/alert"
	"github.com/openjurist/lexgate/pkg/cache"
	"github.com/openjurist/lexgate/pkg/config"
	"github.com/openjurist/lexgate/pkg/courtlistener"
	"github.com/openjurist/lexgate/pkg/errors"
	"github.com/openjurist/lexgate/pkg/mcp"
	"github.com/openjurist/lexgate/pkg/resilience"
	"github.com/openjurist/lexgate/pkg/telemetry"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lexgate:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", os.Getenv("LEXGATE_CONFIG"), "path to YAML config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("lexgate", version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr: with the stdio transport, stdout carries the
	// MCP protocol stream.
	logging := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	log := logging.Logger

	shutdownTelemetry, err := telemetry.Init("lexgate", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	responseCache := cache.New(cache.Config{
		Enabled:       cfg.Cache.Enabled,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: cfg.Cache.SweepInterval,
		StaleGrace:    cfg.Cache.StaleGrace,
	})
	responseCache.Start()
	defer responseCache.Stop()

	var sink alert.Sink
	if cfg.Errors.WebhookURL != "" {
		sink = alert.NewWebhookSink(cfg.Errors.WebhookURL)
	}
	agg := aggregator.New(aggregator.Config{
		AggregationInterval: cfg.Errors.AggregationInterval,
		Retention:           cfg.Errors.Retention,
		AlertThresholds: map[errors.Severity]int{
			errors.SeverityCritical: cfg.Errors.CriticalThreshold,
			errors.SeverityHigh:     cfg.Errors.HighThreshold,
			errors.SeverityMedium:   cfg.Errors.MediumThreshold,
			errors.SeverityLow:      cfg.Errors.LowThreshold,
		},
	}, sink)
	agg.Start()
	defer agg.Stop()

	var breaker *resilience.CircuitBreaker
	if cfg.Breaker.Enabled {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "courtlistener",
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
			MonitoringWindow: cfg.Breaker.MonitoringWindow,
			CallTimeout:      cfg.Breaker.CallTimeout,
		})
	}

	recovery := resilience.NewOrchestrator(
		resilience.RetryPolicy{
			MaxAttempts:          cfg.Retry.MaxAttempts,
			InitialDelay:         cfg.Retry.InitialDelay,
			MaxDelay:             cfg.Retry.MaxDelay,
			Multiplier:           cfg.Retry.Multiplier,
			Jitter:               cfg.Retry.Jitter,
			RetryableCategories:  resilience.DefaultRetryPolicy().RetryableCategories,
			RetryableStatusCodes: resilience.DefaultRetryPolicy().RetryableStatusCodes,
		},
		resilience.FallbackPolicy{
			Enabled:             cfg.Fallback.Enabled,
			StaleCacheWindow:    cfg.Fallback.StaleCacheWindow,
			GracefulDegradation: cfg.Fallback.GracefulDegradation,
		},
		breaker,
		responseCache,
		agg,
		metrics,
	)

	client := courtlistener.NewClient(courtlistener.ClientConfig{
		BaseURL: cfg.CourtListener.BaseURL,
		APIKey:  cfg.CourtListener.APIKey,
		Timeout: cfg.CourtListener.Timeout,
	})

	gateway := mcp.NewGateway(client, responseCache, recovery, agg, metrics, cfg.Cache.DefaultTTL)
	srv := mcp.NewServer("lexgate", version)
	gateway.Register(srv)

	// Log level follows config file edits without a restart.
	if *configPath != "" {
		watcher := config.NewWatcher(*configPath, 0)
		watcher.OnChange(func(updated *config.Config) {
			logging.SetLevel(updated.Log.Level)
		})
		watcher.Start()
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		switch cfg.Server.Transport {
		case "http":
			log.Info("lexgate serving", "transport", "http", "addr", cfg.Server.Addr)
			errCh <- srv.ServeStreamableHTTP(cfg.Server.Addr)
		default:
			log.Info("lexgate serving", "transport", "stdio")
			errCh <- srv.ServeStdio()
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
