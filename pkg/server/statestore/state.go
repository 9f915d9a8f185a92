package statestore

import (
	"errors"
	"net/http"
	"strconv"

	"aistate/pkg/log"
	"aistate/pkg/models"
	"aistate/pkg/store"

	"github.com/labstack/echo/v4"
)

// getState handles GET /state/:service and answers {"state": "..."}.
func (s *Server) getState(ctx echo.Context) error {
	service := ctx.Param("service")

	record, err := s.repo.Get(ctx.Request().Context(), service)
	if err != nil {
		return s.storeError(ctx, service, err)
	}

	return ctx.JSON(http.StatusOK, models.StatePayload{State: record.State})
}

// setState handles POST /state/:service with body {"state": "..."}.
func (s *Server) setState(ctx echo.Context) error {
	service := ctx.Param("service")

	var payload models.StatePayload
	if err := ctx.Bind(&payload); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "Body must be a JSON object with a state field",
		})
	}

	state, err := models.ParseState(string(payload.State))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	record, err := s.repo.Set(ctx.Request().Context(), service, state)
	if err != nil {
		return s.storeError(ctx, service, err)
	}

	log.Info().Str("service", service).Str("state", state.String()).Msg("State stored")
	return ctx.JSON(http.StatusOK, record)
}

// getHistory handles GET /state/:service/history?limit=N.
func (s *Server) getHistory(ctx echo.Context) error {
	service := ctx.Param("service")

	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = parsed
	}

	entries, err := s.repo.History(ctx.Request().Context(), service, limit)
	if err != nil {
		return s.storeError(ctx, service, err)
	}

	return ctx.JSON(http.StatusOK, models.StateHistoryResponse{Service: service, Entries: entries})
}

func (s *Server) health(ctx echo.Context) error {
	if err := s.repo.Ping(ctx.Request().Context()); err != nil {
		log.Error().Err(err).Msg("State database unreachable")
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) storeError(ctx echo.Context, service string, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidService), errors.Is(err, models.ErrInvalidState):
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		log.Error().Err(err).Str("service", service).Msg("State store operation failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
	}
}
