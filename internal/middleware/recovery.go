package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Recovery turns a handler panic into a 500. The kiosk session is left to the
// inactivity reset; panics only count on panics when it is set.
func Recovery(panics prometheus.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if panics != nil {
				panics.Inc()
			}
			requestLogger(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Msg("Request panic recovered")

			abortWith(c, http.StatusInternalServerError, "internal", "Internal server error")
		}()
		c.Next()
	}
}
