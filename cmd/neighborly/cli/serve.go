package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/handler"
	nmcp "github.com/neighborly/neighborly/internal/mcp"
	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/server"
	"github.com/neighborly/neighborly/internal/service"
)

const banner = `
 _   _      _       _     _                _
| \ | | ___(_) __ _| |__ | |__   ___  _ __| |_   _
|  \| |/ _ \ |/ _' | '_ \| '_ \ / _ \| '__| | | | |
| |\  |  __/ | (_| | | | | |_) | (_) | |  | | |_| |
|_| \_|\___|_|\__, |_| |_|_.__/ \___/|_|  |_|\__, |
              |___/                          |___/
`

// daemonEnv marks a process started by serve --background.
const daemonEnv = "NEIGHBORLY_DAEMON"

const devSecret = "neighborly-dev-secret-change-me"

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		dev        bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Neighborly API server",
		Long: `Start the HTTP server that exposes the account, role catalogue, authorization
decision and guarded admin/merchant endpoints. SIGHUP reloads the policy file.`,
		Example: `  neighborly serve
  neighborly serve --port 9090 --dev
  neighborly serve --background   # detach and write a PID file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return startBackground()
			}
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, CORS *)")
	cmd.Flags().BoolVar(&background, "background", false, "Run the server detached from the terminal")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Level = "debug"
		cfg.Server.CORS.Origins = []string{"*"}
	}

	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(cfg.Logging, os.Stderr)
	ctx := context.Background()

	if os.Getenv(daemonEnv) != "" {
		defer removePID()
	}

	// 1. Store
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	logger.Info("store initialized", "driver", store.Driver())

	// 2. Policy
	table, source, err := loadPolicy(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("load policy: %w", err)
	}
	policy := authz.NewHolder(table)
	if err := store.SetSetting(ctx, handler.SettingPolicySource, source); err != nil {
		logger.Warn("failed to record policy source", "error", err)
	}
	logger.Info("policy loaded", "source", source)

	// 3. Auth service
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is not set, using an insecure development secret")
		cfg.Auth.JWTSecret = devSecret
	}
	authSvc := service.NewAuthService(store, service.AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   parseDuration(cfg.Auth.JWTExpiry, 7*24*time.Hour),
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})

	// 4. First-run check
	if _, admins, err := store.ListUsers(ctx, model.UserFilter{Role: authz.RoleAdmin, Limit: 1}); err != nil {
		logger.Warn("failed to check for admin", "error", err)
	} else if admins == 0 {
		logger.Warn("no admin account found - run: neighborly user create --role admin")
	}

	// 5. HTTP server
	def := server.DefaultConfig()
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     parseDuration(cfg.Server.ReadTimeout, def.ReadTimeout),
		WriteTimeout:    parseDuration(cfg.Server.WriteTimeout, def.WriteTimeout),
		ShutdownTimeout: parseDuration(cfg.Server.ShutdownTimeout, def.ShutdownTimeout),
		CORSOrigins:     cfg.Server.CORS.Origins,
		RateLimit:       cfg.Server.RateLimit.Requests,
		RateWindow:      parseDuration(cfg.Server.RateLimit.Window, def.RateWindow),
		MetricsEnabled:  cfg.Metrics.Enabled,
		PolicyFile:      cfg.Policy.File,
	}
	srv := server.New(srvCfg, store, authSvc, policy, logger)

	// 6. MCP over HTTP alongside the API
	if cfg.MCP.Enabled && cfg.MCP.Transport == "http" {
		mcpSrv := nmcp.NewMCPServer(store, policy, logger)
		addr := fmt.Sprintf(":%d", cfg.MCP.Port)
		go func() {
			logger.Info("starting MCP HTTP server", "addr", addr)
			if err := mcpSrv.ServeHTTP(addr); err != nil {
				logger.Error("MCP server stopped", "error", err)
			}
		}()
	}

	displayHost := cfg.Server.Host
	if displayHost == "" || displayHost == "0.0.0.0" {
		displayHost = "localhost"
	}
	fmt.Printf("→ Neighborly %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", displayHost, cfg.Server.Port)
	if cfg.Metrics.Enabled {
		fmt.Printf("→ Metrics:    http://%s:%d/metrics\n", displayHost, cfg.Server.Port)
	}
	fmt.Printf("→ Policy:     %s\n", source)
	fmt.Println()

	return srv.ListenAndServe()
}

// startBackground re-executes the current binary without --background in a
// new session, redirects its output to the log file and records its PID.
func startBackground() error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server is already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, foregroundArgs(os.Args[1:])...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = append(os.Environ(), daemonEnv+"=1")
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := writePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	child.Process.Release()

	fmt.Printf("Neighborly server started in the background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logFilePath())
	fmt.Println("  Stop: neighborly stop")
	return nil
}

// foregroundArgs drops the --background flag from args.
func foregroundArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--background" || strings.HasPrefix(a, "--background=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
