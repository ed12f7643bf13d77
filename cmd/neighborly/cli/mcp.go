package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	nmcp "github.com/neighborly/neighborly/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that lets AI agents inspect the
role model: list roles, explain a guard decision for a role or a stored user,
show the navigation a role sees, and read recent denials. All tools are
read-only. Supports stdio (default) and HTTP transports.`,
		Example: `  neighborly mcp                             # stdio mode (for desktop MCP clients)
  neighborly mcp --transport http --port 3001  # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Flags win over the mcp section of the config file.
			if !cmd.Flags().Changed("transport") && cfg.MCP.Transport != "" {
				transport = cfg.MCP.Transport
			}
			if !cmd.Flags().Changed("port") && cfg.MCP.Port != 0 {
				port = cfg.MCP.Port
			}
			return runMCP(cfg, transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(cfg *config.YAMLConfig, transport string, port int) error {
	// stdout carries the protocol in stdio mode, so logs go to stderr.
	logger := newLogger(cfg.Logging, os.Stderr)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	table, source, err := loadPolicy(cfg)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	logger.Info("policy loaded", "source", source)

	mcpSrv := nmcp.NewMCPServer(store, authz.NewHolder(table), logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
