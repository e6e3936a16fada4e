// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openjurist/lexgate/pkg/aggregator"
	"github.com/openjurist/lexgate/pkg/errors"
)

// registerOperatorTools exposes the error aggregator's query, export and
// resolution surface plus cache statistics as MCP tools, so an operator (or
// an assistant acting as one) can inspect gateway health in-band.
func (g *Gateway) registerOperatorTools(srv *Server) {
	srv.RegisterTool("get_error_reports", g.handleErrorReports,
		mcp.WithDescription("List aggregated upstream error reports, most recent first."),
		mcp.WithString("category", mcp.Description("Filter by error category, e.g. network, rate_limit, external_api")),
		mcp.WithString("severity", mcp.Description("Filter by severity: critical, high, medium, low")),
		mcp.WithString("endpoint", mcp.Description("Filter by affected upstream endpoint")),
		mcp.WithString("status", mcp.Description("Filter by resolution status: unresolved, investigating, resolved, ignored")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reports to return")),
	)

	srv.RegisterTool("get_error_trends", g.handleErrorTrends,
		mcp.WithDescription("Per category/severity error volume for the last aggregation window, classified increasing, decreasing or stable."),
	)

	srv.RegisterTool("export_error_reports", g.handleExport,
		mcp.WithDescription("Export all error reports as json or yaml."),
		mcp.WithString("format", mcp.Description("Export format: json (default) or yaml")),
	)

	srv.RegisterTool("update_error_resolution", g.handleResolution,
		mcp.WithDescription("Set the triage status of an error report."),
		mcp.WithString("signature", mcp.Required(), mcp.Description("Report signature to update")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: unresolved, investigating, resolved, ignored")),
		mcp.WithString("assignee", mcp.Description("Person handling the report")),
		mcp.WithString("notes", mcp.Description("Triage notes")),
	)

	srv.RegisterTool("get_cache_stats", g.handleCacheStats,
		mcp.WithDescription("Response cache occupancy and circuit breaker state."),
	)
}

func (g *Gateway) handleErrorReports(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f := aggregator.Filter{}
	if s, ok := args["category"].(string); ok {
		f.Category = errors.Category(s)
	}
	if s, ok := args["severity"].(string); ok {
		f.Severity = errors.Severity(s)
	}
	if s, ok := args["endpoint"].(string); ok {
		f.Endpoint = s
	}
	if s, ok := args["status"].(string); ok {
		f.Status = aggregator.ResolutionStatus(s)
	}
	if n, ok := args["limit"].(float64); ok && n > 0 {
		f.Limit = int(n)
	}
	return jsonResult(g.agg.Reports(f))
}

func (g *Gateway) handleErrorTrends(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return jsonResult(g.agg.Trends())
}

func (g *Gateway) handleExport(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	format, _ := args["format"].(string)
	out, err := g.agg.Export(format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (g *Gateway) handleResolution(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	signature, _ := args["signature"].(string)
	status, _ := args["status"].(string)
	if signature == "" || status == "" {
		return mcp.NewToolResultError("signature and status are required"), nil
	}
	switch aggregator.ResolutionStatus(status) {
	case aggregator.StatusUnresolved, aggregator.StatusInvestigating, aggregator.StatusResolved, aggregator.StatusIgnored:
	default:
		return mcp.NewToolResultError("unknown status: " + status), nil
	}
	assignee, _ := args["assignee"].(string)
	notes, _ := args["notes"].(string)

	ok := g.agg.UpdateResolution(signature, aggregator.ResolutionStatus(status), assignee, notes)
	return jsonResult(map[string]interface{}{"updated": ok})
}

func (g *Gateway) handleCacheStats(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"cache":   g.cache.Stats(),
		"breaker": string(g.recovery.BreakerState()),
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
