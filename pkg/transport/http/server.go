// Package http serves the crowdmcp HTTP surface: the MCP endpoint, health
// and status probes, the tool listing, provider routes (OAuth callbacks)
// and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crowdit/crowdmcp/pkg/observability"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/transport"
)

// ServiceName is reported by the banner and status endpoints.
const ServiceName = "crowdmcp"

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "dev",
		MetricsPath:     "/metrics",
	}
}

// Server wraps an http.Server and manages startup and graceful shutdown.
type Server struct {
	config     ServerConfig
	registry   *registry.Registry
	mcp        http.Handler
	gate       transport.Middleware
	logger     *slog.Logger
	httpServer *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithConfig replaces the server configuration.
func WithConfig(cfg ServerConfig) ServerOption {
	return func(s *Server) { s.config = cfg }
}

// WithGate installs the access gate in front of the mux.
func WithGate(gate func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.gate = gate }
}

// WithLogger sets the structured logger used for access logs.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server exposing reg's tools through mcpHandler.
func NewServer(reg *registry.Registry, mcpHandler http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		config:   DefaultServerConfig(),
		registry: reg,
		mcp:      mcpHandler,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}
	return s
}

// Handler returns the fully wrapped handler. Middleware order, outermost
// first: recovery, request ID, access log, metrics, gate.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("GET /{$}", s.handleBanner)
	if s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}
	// Provider routes (OAuth callbacks) take everything else.
	mux.Handle("/", s.registry.HTTPHandler())

	var gated http.Handler = mux
	if s.gate != nil {
		gated = s.gate(mux)
	}

	return transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
		observability.MetricsMiddleware,
	)(gated)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": ServiceName,
		"version": s.config.Version,
		"tools":   len(s.registry.Tools()),
		"vendors": s.registry.Providers(),
	})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   ServiceName,
		"version":   s.config.Version,
		"mcp":       "/mcp",
		"transport": "streamable-http",
		"tools":     len(s.registry.Tools()),
	})
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	all := s.registry.Tools()
	out := make([]toolSummary, 0, len(all))
	for _, t := range all {
		desc := t.Description
		if desc == "" {
			desc = "No description"
		}
		out = append(out, toolSummary{Name: t.Name, Description: desc})
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.ServeOn(ctx, ln)
}

// ServeOn serves on ln until ctx is cancelled.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
