package gateway

import (
	"net/http"

	"aistate/pkg/log"
	"aistate/pkg/models"

	"github.com/labstack/echo/v4"
)

// getState handles GET /api/ai-state. The upstream state object is passed through as is.
func (s *Server) getState(ctx echo.Context) error {
	document, err := s.forwarder.QueryStateDocument(ctx.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read AI state from upstream")
		return ctx.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to read state from upstream store",
		})
	}

	return ctx.JSONBlob(http.StatusOK, document)
}

// setState handles POST /api/ai-state with body {"state": "..."}.
func (s *Server) setState(ctx echo.Context) error {
	var payload models.StatePayload
	if err := ctx.Bind(&payload); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "Body must be a JSON object with a state field",
		})
	}

	state, err := models.ParseState(string(payload.State))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
	}

	result := s.forwarder.SetState(ctx.Request().Context(), state)
	return ctx.JSON(http.StatusOK, result)
}
