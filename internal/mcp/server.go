// ABOUTME: MCP server initialization and configuration for pagemem.
// ABOUTME: Sets up server with page memory tools for AI agent access.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/logging"
)

// Server wraps the MCP server with the page store.
type Server struct {
	mcp    *gomcp.Server
	store  *index.Store
	logger *slog.Logger
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithLogger sets the logger for tool calls. Stdout carries the protocol, so it
// must not write there.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server exposing the page store.
func NewServer(store *index.Store, opts ...ServerOption) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("page store is required")
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "pagemem",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:    mcpServer,
		store:  store,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerPageTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
