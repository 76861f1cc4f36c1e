// Package mcp exposes the portfolio tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/llm"
	"github.com/hodlisma/hodlisma-engine/pkg/middleware"
)

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp     *server.MCPServer
	version string
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance with the health tool registered.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcp:     mcpServer,
		version: version,
		logger:  logger.Named("mcp"),
	}
	s.registerHealthTool()
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// RegisterFinanceTools exposes every chat tool to MCP clients, delegating to executor.
func (s *Server) RegisterFinanceTools(executor llm.ToolExecutor) error {
	for _, def := range llm.FinanceTools() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, schema)
		s.RegisterTool(tool, s.toolHandler(def.Name, executor))
	}
	return nil
}

func (s *Server) toolHandler(name string, executor llm.ToolExecutor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return NewErrorResult("invalid_input", "arguments must be a JSON object"), nil
		}

		output, err := executor.ExecuteTool(ctx, name, string(args))
		if err != nil {
			code, actionable := errorCode(err)
			if !actionable {
				s.logger.Error("MCP tool failed", zap.String("tool", name), zap.Error(err))
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return NewErrorResult(code, err.Error()), nil
		}
		return mcp.NewToolResultText(output), nil
	}
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) registerHealthTool() {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := json.Marshal(healthResult{Status: "ok", Version: s.version})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// Handler returns the /mcp endpoint. Requests through it are attributed to
// the AI agent and tool calls are logged.
func (s *Server) Handler() http.Handler {
	return middleware.MCPRequestLogger(s.logger)(middleware.AgentTrigger(s.NewStreamableHTTPServer()))
}
