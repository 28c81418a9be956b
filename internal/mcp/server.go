// Package mcp provides an MCP (Model Context Protocol) server for hopfield.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/hopfield/internal/ratelimit"
	"github.com/nvandessel/hopfield/internal/service"
)

// clientKey identifies the single stdio client in the rate limiters.
const clientKey = "stdio"

// Server wraps the MCP SDK server and exposes the Hopfield service as tools.
type Server struct {
	server   *sdk.Server
	svc      *service.Service
	limiters ratelimit.OperationLimiters
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name     string // Server name (e.g., "hopfield")
	Version  string // Server version
	Service  *service.Service
	Limiters ratelimit.OperationLimiters // nil disables rate limiting
	Logger   *slog.Logger
}

// NewServer creates a new MCP server with hopfield tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:   mcpServer,
		svc:      cfg.Service,
		limiters: cfg.Limiters,
		logger:   logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Debug("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &sdk.StdioTransport{})
}
