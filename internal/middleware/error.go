package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Errors that are not AppErrors are reported as 500 without their text.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last().Err

		status := http.StatusInternalServerError
		message := "internal server error"
		if appErr, ok := apperrors.As(lastErr); ok {
			status = appErr.StatusCode()
			message = appErr.Message
		}

		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error().Str("stack", apperrors.Verbose(lastErr))
		}
		event.
			Err(lastErr).
			Int("error_code", int(apperrors.CodeOf(lastErr))).
			Str("trace_id", traceID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("request error")

		// A handler or an inner middleware already answered.
		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, ErrorResponse{
			Code:    status,
			Message: message,
			TraceID: traceID,
		})
	}
}
