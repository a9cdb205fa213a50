// Package mcp exposes registered Steward tools to external agents over the
// Model Context Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const ServerName = "steward"

// ToolExecutor is satisfied by usecase.ToolRegistry.
type ToolExecutor interface {
	Definitions() []domain.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

type Server struct {
	mcp   *server.MCPServer
	tools ToolExecutor
	names []string
}

// NewServer publishes the named tools. Names the executor does not know are
// skipped.
func NewServer(version string, tools ToolExecutor, names []string) (*Server, error) {
	s := &Server{
		mcp:   server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false), server.WithRecovery()),
		tools: tools,
	}

	for _, def := range tools.Definitions() {
		if !slices.Contains(names, def.Name) {
			continue
		}
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), s.handle(def.Name))
		s.names = append(s.names, def.Name)
	}
	return s, nil
}

// Tools lists the exposed tool names in registration order.
func (s *Server) Tools() []string {
	return slices.Clone(s.names)
}

// Handler serves the streamable HTTP transport. Sessions are not tracked since
// every exposed tool is a read.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.call(ctx, name, request.GetArguments()), nil
	}
}

// call maps tool failures onto error results so the remote agent sees them as
// tool output rather than protocol errors.
func (s *Server) call(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	if args == nil {
		args = map[string]any{}
	}
	result, err := s.tools.Execute(ctx, name, args)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", name, "error", err)
		if errors.Is(err, domain.ErrInvalidToolArguments) {
			return mcp.NewToolResultError("invalid arguments: " + err.Error())
		}
		return mcp.NewToolResultError(err.Error())
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(payload))
}
