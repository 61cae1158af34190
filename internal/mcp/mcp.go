// Package mcp exposes the memory service as an MCP (Model Context Protocol)
// server, normally over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// Config holds the dependencies of the MCP server.
type Config struct {
	// Service runs every tool.
	Service *service.Service

	// Version is reported to clients during initialization.
	Version string

	// Logger is the configured zap logger
	Logger *zap.Logger
}

// Server serves the memory tools over MCP.
type Server struct {
	config    Config
	mcpServer *mcp.Server
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(c Config) (*Server, error) {
	if c.Service == nil {
		return nil, errors.New("memory service is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Version == "" {
		c.Version = "dev"
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "agent-recall",
			Version: c.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{Name: rememberToolName, Description: rememberDescription}, s.handleRemember)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: recallToolName, Description: recallDescription}, s.handleRecall)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: searchToolName, Description: searchDescription}, s.handleSearch)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: getToolName, Description: getDescription}, s.handleGet)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: deleteToolName, Description: deleteDescription}, s.handleDelete)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: recentToolName, Description: recentDescription}, s.handleRecent)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: statsToolName, Description: statsDescription}, s.handleStats)

	s.mcpServer = mcpServer
	return s, nil
}

// Run serves a single session on the transport until the client disconnects
// or ctx is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.config.Logger.Info("starting MCP server", zap.String("version", s.config.Version))
	return s.mcpServer.Run(ctx, t)
}

// RunStdio serves on stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// errorResult reports a failed tool call to the client.
func (s *Server) errorResult(action string, err error) *mcp.CallToolResult {
	s.config.Logger.Error(action, zap.String("kind", memory.Kind(err)), zap.Error(err))
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s (%s): %v", action, memory.Kind(err), err)},
		},
	}
}

// jsonResult serializes the structured output as JSON for the text field, so
// clients without structured content support still get the payload.
func (s *Server) jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return s.errorResult("failed to serialize result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}
