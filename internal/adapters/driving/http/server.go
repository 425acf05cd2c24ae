package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/authcore/internal/core/ports/driving"
	"github.com/custodia-labs/authcore/internal/observability"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the auth API
type Server struct {
	router     *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger

	authService    driving.AuthService
	resolver       driving.PrincipalResolver
	accountService driving.AccountService
	cacheAdmin     driving.CacheAdmin

	registry *prometheus.Registry
	metrics  *observability.Metrics

	db    Pinger
	cache Pinger

	version        string
	allowedOrigins []string
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
	}
}

// Deps bundles the services and probes the server routes to
type Deps struct {
	AuthService    driving.AuthService
	Resolver       driving.PrincipalResolver
	AccountService driving.AccountService
	CacheAdmin     driving.CacheAdmin

	// Registry is served on /metrics; Metrics records request latency.
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	DB    Pinger
	Cache Pinger

	Logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		logger:         logger.With("component", "http"),
		authService:    deps.AuthService,
		resolver:       deps.Resolver,
		accountService: deps.AccountService,
		cacheAdmin:     deps.CacheAdmin,
		registry:       deps.Registry,
		metrics:        deps.Metrics,
		db:             deps.DB,
		cache:          deps.Cache,
		version:        cfg.Version,
		allowedOrigins: cfg.AllowedOrigins,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = NewCORSMiddleware(s.allowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(s.logger, s.metrics).Handler(handler)
	handler = NewRecoveryMiddleware(s.logger).Handler(handler)
	return handler
}

func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.resolver)

	// Health endpoints (public)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	if s.registry != nil {
		s.router.Handle("GET /metrics", observability.Handler(s.registry))
	}

	// Credential flows (public)
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	s.router.HandleFunc("GET /api/v1/auth/verify-email/{token}", s.handleVerifyEmail)
	s.router.HandleFunc("POST /api/v1/auth/request-password-reset", s.handleRequestPasswordReset)
	s.router.HandleFunc("POST /api/v1/auth/reset-password", s.handleResetPassword)

	// Account endpoints (authenticated)
	s.router.Handle("GET /api/v1/auth/me",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMe)))
	s.router.Handle("POST /api/v1/auth/avatar",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUpdateAvatar)))

	// Admin endpoints (admin-only)
	s.router.Handle("DELETE /api/v1/admin/cache",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleClearCache))))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
