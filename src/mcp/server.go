package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/tunnelforge/tunnelforge/src/session"
)

// Server represents the MCP server exposing TunnelForge's session
// operations as tools, mounted onto the same gin.Engine the HTTP API
// uses.
type Server struct {
	mcpServer *mcp.Server
	manager   *session.Manager
	engine    *gin.Engine
}

// NewServer creates an MCP server bound to manager using the official
// SDK, and registers its tools onto ginEngine at /mcp.
func NewServer(ginEngine *gin.Engine, manager *session.Manager) (*Server, error) {
	logrus.Info("Creating MCP server")

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "TunnelForge Server",
			Version: "1.0.0",
		},
		nil,
	)

	server := &Server{
		mcpServer: mcpServer,
		manager:   manager,
		engine:    ginEngine,
	}

	logrus.Info("Registering tools")
	if err := server.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	logrus.Info("Tools registered")

	server.setupHTTPEndpoints()
	return server, nil
}

// Serve is a no-op: the MCP server is served through the gin
// endpoints set up by setupHTTPEndpoints.
func (s *Server) Serve() error { return nil }

// setupHTTPEndpoints sets up the HTTP endpoints using the official SDK pattern.
func (s *Server) setupHTTPEndpoints() {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	s.engine.Any("/mcp/*path", gin.WrapH(http.StripPrefix("/mcp", handler)))
	s.engine.Any("/mcp", gin.WrapH(handler))

	logrus.Info("MCP HTTP endpoints configured at /mcp")
}

// registerTools registers all the tools with the MCP server.
func (s *Server) registerTools() error {
	s.registerSessionTools()
	logrus.Info("Session tools registered")
	return nil
}

// LogToolCall wraps a tool handler function with logging middleware.
func LogToolCall[T any, R any](toolName string, handler func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error)) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, R, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error) {
		start := time.Now()
		logrus.Infof("Tool call started: %s", toolName)

		result, output, err := handler(ctx, req, args)

		duration := time.Since(start)
		if err != nil {
			logrus.Errorf("Tool call failed: %s (duration: %v, error: %v)", toolName, duration, err)
			if err.Error() == "" {
				err = fmt.Errorf("tool %s failed with unknown error", toolName)
			}
		} else {
			logrus.Infof("Tool call completed: %s (duration: %v)", toolName, duration)
		}

		return result, output, err
	}
}
