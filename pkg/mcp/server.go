// SPDX-License-Identifier: Apache-2.0
// Package mcp exposes the CourtListener tool operations over the Model
// Context Protocol, routing every upstream call through the resilience layer.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the mcp-go server for the gateway.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server identifying as name/version.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
}

// RegisterTool registers a tool built from the given options.
func (s *Server) RegisterTool(name string, handler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error), opts ...mcp.ToolOption) {
	tool := mcp.NewTool(name, opts...)
	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		return handler(ctx, args)
	})
}

// ServeStdio serves the MCP protocol over stdin/stdout. Blocks until the
// client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP serves the MCP protocol over streamable HTTP on addr.
func (s *Server) ServeStreamableHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}
