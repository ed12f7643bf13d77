package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
)

// MCPServer wraps the mcp-go server with Neighborly's authorization tools
// and resources. Agents can inspect the role catalogue, ask what a role may
// do, and check what a stored user may do.
type MCPServer struct {
	store  *config.Store
	policy *authz.Holder
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all Neighborly tools and
// resources. store may be nil, in which case user lookups report an error.
func NewMCPServer(store *config.Store, policy *authz.Holder, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = authz.NewHolder(authz.DefaultTable())
	}
	s := &MCPServer{
		store:  store,
		policy: policy,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Neighborly Access Control",
		"0.1.0",
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
