package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/drift"
	"github.com/neighborly/neighborly/internal/handler"
	"github.com/neighborly/neighborly/internal/metrics"
	"github.com/neighborly/neighborly/internal/openapi"
	"github.com/neighborly/neighborly/internal/server/middleware"
	"github.com/neighborly/neighborly/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int // requests per RateWindow per IP; 0 disables
	RateWindow      time.Duration
	MetricsEnabled  bool
	PolicyFile      string // reloaded on SIGHUP when set
	BaseURL         string // advertised in the OpenAPI document
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimit:       100,
		RateWindow:      time.Minute,
		MetricsEnabled:  true,
	}
}

// Server is the top-level HTTP server for Neighborly. It owns the Chi router,
// the configuration store, the authentication service, and the active
// authorization policy.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	policy     *authz.Holder
	guard      *middleware.Guard
	routes     []endpoint
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, policy *authz.Holder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = authz.NewHolder(authz.DefaultTable())
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		authSvc: authSvc,
		policy:  policy,
		guard:   middleware.NewGuard(policy, logger, store),
		logger:  logger,
	}
	s.routes = s.endpoints()
	s.setupRouter()
	s.publishPolicy()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	if s.cfg.MetricsEnabled {
		r.Use(middleware.Metrics)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit, s.window()))
	}

	// --- Probes and documents (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", s.handleOpenAPI)
	if s.cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// --- API routes ---
	authn := middleware.Authenticate(s.authSvc)
	for _, ep := range s.routes {
		var chain []func(http.Handler) http.Handler
		if ep.limited && s.cfg.RateLimit > 0 {
			// Credential endpoints get a tighter per-route budget.
			chain = append(chain, middleware.RateLimitByEndpoint(max(s.cfg.RateLimit/10, 1), s.window()))
		}
		if !ep.anonymous {
			chain = append(chain, authn)
		}
		if ep.Auth {
			chain = append(chain, s.guard.Require(ep.Requirement))
		}
		r.With(chain...).Method(ep.Method, ep.Path, ep.handler)
	}

	s.router = r
}

func (s *Server) window() time.Duration {
	if s.cfg.RateWindow <= 0 {
		return time.Minute
	}
	return s.cfg.RateWindow
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store answers a
// ping, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"store": "ok"}

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	base := s.cfg.BaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openapi.Generate(s.RouteDocs(), base))
}

// RouteDocs returns the documentation for every API route the server mounts.
func (s *Server) RouteDocs() []openapi.RouteDoc {
	docs := make([]openapi.RouteDoc, len(s.routes))
	for i, ep := range s.routes {
		docs[i] = ep.RouteDoc
	}
	return docs
}

// ReloadPolicy re-reads the policy file and swaps it in. Requests already
// past the guard keep the table they were evaluated against.
func (s *Server) ReloadPolicy(ctx context.Context) error {
	if s.cfg.PolicyFile == "" {
		return errors.New("no policy file configured")
	}
	t, err := config.LoadPolicy(s.cfg.PolicyFile)
	if err != nil {
		return err
	}
	report := drift.Diff(s.policy.Load(), t, authz.DefaultRoutes())
	s.policy.Swap(t)
	s.publishPolicy()
	s.logDrift(report)
	if err := s.store.SetSetting(ctx, handler.SettingPolicySource, s.cfg.PolicyFile); err != nil {
		s.logger.Warn("failed to record policy source", "error", err)
	}
	s.logger.Info("policy reloaded", "file", s.cfg.PolicyFile)
	return nil
}

// logDrift records what a reload changed. Escalations log at warn level.
func (s *Server) logDrift(report drift.Report) {
	if !report.HasDrift {
		s.logger.Info("policy reload changed nothing")
		return
	}
	for _, item := range report.Items() {
		level := slog.LevelInfo
		if item.Type == drift.ChangeEscalation {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "policy drift",
			"type", item.Type, "category", item.Category, "role", item.Role,
			"permission", item.Permission, "path", item.Path)
	}
}

func (s *Server) publishPolicy() {
	t := s.policy.Load()
	for _, role := range authz.Roles() {
		metrics.SetRolePermissions(string(role), len(t.Grants(role)))
	}
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store. SIGHUP reloads the policy file.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
loop:
	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server listen: %w", err)
		case <-hup:
			if err := s.ReloadPolicy(ctx); err != nil {
				s.logger.Error("policy reload failed, keeping current policy", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutdown signal received, draining connections...")
			break loop
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
