package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/safeagree/internal/policy"
)

// writePolicyError maps policy sentinels onto JSend responses. Caller input
// problems are "fail"; system and upstream problems are "error".
func (s *Server) writePolicyError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, policy.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, policy.ErrEmptyContent):
		return fail(c, http.StatusUnprocessableEntity, "Document has no readable text", nil)
	case errors.Is(err, policy.ErrExtractionFailed):
		return fail(c, http.StatusUnprocessableEntity, "Could not extract text from document", nil)
	case errors.Is(err, policy.ErrNotFound):
		return failNotFound(c, "Not found")
	case errors.Is(err, policy.ErrGatewayTimeout):
		s.logger.Warn().Err(err).Str("action", action).Msg("summarizer timed out")
		return errorWithStatus(c, http.StatusGatewayTimeout, "Summarizer timed out")
	case errors.Is(err, policy.ErrGatewayFailure):
		s.logger.Error().Err(err).Str("action", action).Msg("summarizer failed")
		return errorWithStatus(c, http.StatusBadGateway, "Summarizer failed")
	case errors.Is(err, policy.ErrCacheCorruption):
		s.logger.Error().Err(err).Str("action", action).Msg("cache corruption")
		return internalError(c, "Stored summary is unreadable")
	default:
		s.logger.Error().Err(err).Str("action", action).Msg("request failed")
		return internalError(c, "Failed to "+action)
	}
}
