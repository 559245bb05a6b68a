package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type TimeoutConfig struct {
	Duration  time.Duration
	SkipPaths []string
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Duration:  30 * time.Second,
		SkipPaths: []string{"/api/v1/ws"},
	}
}

// Timeout bounds the request context. Handlers run on the request goroutine and are
// expected to honour ctx; a handler that returns without writing after the deadline gets a 504.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !c.Writer.Written() && len(c.Errors) == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			abortWith(c, http.StatusGatewayTimeout, "request_aborted", "Request timeout")
		}
	}
}
