package statestore

import (
	"context"
	"time"

	"aistate/pkg/log"
	"aistate/pkg/models"
	"aistate/pkg/server"

	"github.com/labstack/echo/v4"
)

// Repository is the persistence the state store server needs.
type Repository interface {
	Get(ctx context.Context, service string) (*models.StateRecord, error)
	Set(ctx context.Context, service string, state models.AvailabilityState) (*models.StateRecord, error)
	History(ctx context.Context, service string, limit int) ([]models.StateHistoryEntry, error)
	Ping(ctx context.Context) error
}

// Server exposes the upstream state store protocol over HTTP.
type Server struct {
	repo            Repository
	echo            *echo.Echo
	shutdownTimeout time.Duration
}

// NewServer creates a state store server over repo.
func NewServer(repo Repository, shutdownTimeout time.Duration) *Server {
	s := &Server{
		repo:            repo,
		echo:            server.NewEcho(),
		shutdownTimeout: shutdownTimeout,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start serves on addr until SIGINT/SIGTERM.
func (s *Server) Start(addr string) error {
	log.Info().Msg("State store ready")
	return server.Run(s.echo, addr, "state store", s.shutdownTimeout)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.health)
	s.echo.GET("/state/:service", s.getState)
	s.echo.POST("/state/:service", s.setState)
	s.echo.GET("/state/:service/history", s.getHistory)
}
