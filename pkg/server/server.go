package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aistate/pkg/log"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultShutdownTimeout bounds graceful shutdown of an echo server.
const DefaultShutdownTimeout = 10 * time.Second

// NewEcho returns an echo instance with the middleware shared by every binary.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${id} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())

	return e
}

// HealthHandler answers liveness checks of the service itself.
func HealthHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves e on addr until SIGINT/SIGTERM, then shuts it down gracefully.
func Run(e *echo.Echo, addr, name string, shutdownTimeout time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return RunUntil(e, addr, name, shutdownTimeout, quit)
}

// RunUntil serves e on addr until stop yields, then shuts it down gracefully.
func RunUntil(e *echo.Echo, addr, name string, shutdownTimeout time.Duration, stop <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msgf("Starting %s", name)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			log.Error().Err(err).Msg("Server failed")
			return err
		}
		return nil
	case <-stop:
	}

	return Shutdown(e, shutdownTimeout)
}

// Shutdown stops e, waiting at most timeout for in-flight requests.
func Shutdown(e *echo.Echo, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}
