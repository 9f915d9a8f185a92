package gateway

import (
	"context"
	"encoding/json"
	"time"

	"aistate/pkg/log"
	"aistate/pkg/metrics"
	"aistate/pkg/models"
	"aistate/pkg/registry"
	"aistate/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// StateForwarder is what the gateway needs from the forwarder.
type StateForwarder interface {
	QueryStateDocument(ctx context.Context) (json.RawMessage, error)
	SetState(ctx context.Context, requested models.AvailabilityState) models.ForwardResult
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes collector on /metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Server) {
		s.collector = collector
	}
}

// WithWatcher runs the model registry watcher for the lifetime of Start.
func WithWatcher(watcher *registry.Watcher) Option {
	return func(s *Server) {
		s.watcher = watcher
	}
}

// Server is the caller-facing HTTP surface of the forwarder.
type Server struct {
	forwarder       StateForwarder
	collector       *metrics.Collector
	watcher         *registry.Watcher
	shutdownTimeout time.Duration
	echo            *echo.Echo
}

// NewServer creates a gateway over forwarder.
func NewServer(forwarder StateForwarder, shutdownTimeout time.Duration, opts ...Option) *Server {
	s := &Server{
		forwarder:       forwarder,
		shutdownTimeout: shutdownTimeout,
		echo:            server.NewEcho(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start serves on addr until SIGINT/SIGTERM. The registry watcher, if any, stops with it.
func (s *Server) Start(addr string) error {
	if s.watcher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.watcher.Start(ctx)
	}

	log.Info().Msg("AI state gateway ready")
	return server.Run(s.echo, addr, "AI state gateway", s.shutdownTimeout)
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.CORS())

	s.echo.GET("/healthz", server.HealthHandler)
	s.echo.GET("/swagger.yml", serveSwaggerSpec)
	s.echo.GET("/api/ai-state", s.getState)
	s.echo.POST("/api/ai-state", s.setState)

	if s.collector != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.collector.Handler()))
	}
}
