package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// errorNames are the stable identifiers screens switch on.
var errorNames = map[errors.ErrorCode]string{
	errors.ErrNotFound:            "not_found",
	errors.ErrBadRequest:          "bad_request",
	errors.ErrInternal:            "internal",
	errors.ErrInvalidCode:         "invalid_code",
	errors.ErrIncomplete:          "incomplete",
	errors.ErrServer:              "server_error",
	errors.ErrRequestAborted:      "request_aborted",
	errors.ErrRoomInfoUnavailable: "room_info_unavailable",
	errors.ErrNotification:        "notification_failed",
	errors.ErrFlow:                "flow",
	errors.ErrSessionReset:        "session_reset",
}

// abortWith writes an error body without going through c.Error.
func abortWith(c *gin.Context, status int, name, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:    "error",
		Code:      status,
		Error:     name,
		Message:   message,
		RequestID: RequestIDFrom(c),
	})
}

// ErrorHandler renders the last error attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		if err, ok := lastErr.Err.(interface{ StatusCode() int }); ok {
			status = err.StatusCode()
		}
		if lastErr.IsType(gin.ErrorTypeBind) {
			status = http.StatusBadRequest
		}

		l := requestLogger(c)
		for _, e := range c.Errors {
			ev := l.Warn()
			if status >= http.StatusInternalServerError {
				ev = l.Error()
			}
			ev.Err(e.Err).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		c.JSON(status, ErrorResponse{
			Status:    "error",
			Code:      status,
			Error:     errorNames[errors.CodeOf(lastErr.Err)],
			Message:   lastErr.Error(),
			RequestID: RequestIDFrom(c),
		})
	}
}
