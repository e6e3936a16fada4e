// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openjurist/lexgate/pkg/aggregator"
	"github.com/openjurist/lexgate/pkg/cache"
	"github.com/openjurist/lexgate/pkg/courtlistener"
	"github.com/openjurist/lexgate/pkg/errors"
	"github.com/openjurist/lexgate/pkg/resilience"
	"github.com/openjurist/lexgate/pkg/telemetry"
)

// Upstream is the CourtListener client surface the gateway needs.
type Upstream interface {
	Get(ctx context.Context, endpoint string, params map[string]interface{}) (map[string]interface{}, error)
	Post(ctx context.Context, endpoint string, params map[string]interface{}) (map[string]interface{}, error)
}

// Gateway routes tool calls through the cache and the recovery orchestrator
// to the upstream, and exposes the error aggregator's query surface as
// operator tools.
type Gateway struct {
	client   Upstream
	cache    *cache.ResponseCache
	recovery *resilience.Orchestrator
	agg      *aggregator.Aggregator
	metrics  *telemetry.Metrics
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewGateway wires a Gateway. cacheTTL of 0 uses the cache's default.
func NewGateway(client Upstream, c *cache.ResponseCache, recovery *resilience.Orchestrator, agg *aggregator.Aggregator, metrics *telemetry.Metrics, cacheTTL time.Duration) *Gateway {
	return &Gateway{
		client:   client,
		cache:    c,
		recovery: recovery,
		agg:      agg,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		log:      slog.Default(),
	}
}

// Register adds every CourtListener operation and the operator tools to srv.
func (g *Gateway) Register(srv *Server) {
	for _, op := range courtlistener.Operations() {
		g.registerOperation(srv, op)
	}
	g.registerOperatorTools(srv)
}

func (g *Gateway) registerOperation(srv *Server, op courtlistener.Operation) {
	srv.RegisterTool(op.Name, func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		return g.handle(ctx, op, args)
	}, toolOptions(op)...)
}

// handle runs one tool call: validate, consult the cache, execute with
// recovery, populate the cache on fresh data, and tag the result's source so
// clients can tell degraded answers from fresh ones.
func (g *Gateway) handle(ctx context.Context, op courtlistener.Operation, args map[string]interface{}) (*mcp.CallToolResult, error) {
	endpoint, params, err := op.Request(args)
	if err != nil {
		if g.agg != nil {
			g.agg.ReportError(errors.AsGatewayError(err).WithEndpoint(op.Name))
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	if value, ok := g.cache.Get(endpoint, params); ok {
		g.metrics.RecordCacheHit(ctx, endpoint)
		return g.toolResult(op.Name, value, resilience.SourceCache)
	}
	g.metrics.RecordCacheMiss(ctx, endpoint)

	call := func(ctx context.Context) (interface{}, error) {
		if op.Method == "POST" {
			return g.client.Post(ctx, endpoint, params)
		}
		return g.client.Get(ctx, endpoint, params)
	}

	res, err := g.recovery.ExecuteWithRecovery(ctx, call, resilience.OperationContext{
		Operation: op.Name,
		Endpoint:  endpoint,
		Params:    params,
		Degraded:  op.Degraded,
	}, resilience.DefaultOptions())

	g.publishBreakerState(ctx)

	if err != nil {
		g.log.Error("gateway.tool.failed",
			slog.String("tool", op.Name),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if res.Source == resilience.SourceUpstream {
		g.cache.Set(endpoint, params, res.Value, g.cacheTTL)
	}
	return g.toolResult(op.Name, res.Value, res.Source)
}

// toolResult wraps a payload with its provenance tag.
func (g *Gateway) toolResult(tool string, value interface{}, source resilience.Source) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"source":   string(source),
		"degraded": source != resilience.SourceUpstream && source != resilience.SourceCache,
		"data":     value,
	})
	if err != nil {
		g.log.Error("gateway.result.marshal", slog.String("tool", tool), slog.String("error", err.Error()))
		return mcp.NewToolResultError("failed to encode tool result"), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (g *Gateway) publishBreakerState(ctx context.Context) {
	var state int64
	switch g.recovery.BreakerState() {
	case resilience.StateOpen:
		state = 0
	case resilience.StateHalfOpen:
		state = 1
	default:
		state = 2
	}
	g.metrics.RecordBreakerState(ctx, "courtlistener", state)
}

// toolOptions converts an operation's declared params to mcp schema options.
func toolOptions(op courtlistener.Operation) []mcp.ToolOption {
	opts := []mcp.ToolOption{mcp.WithDescription(op.Description)}
	for _, p := range op.Params {
		var propOpts []mcp.PropertyOption
		if p.Description != "" {
			propOpts = append(propOpts, mcp.Description(p.Description))
		}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return opts
}
