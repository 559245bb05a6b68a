package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggerConfig lists path prefixes that are too chatty to log at info level.
type LoggerConfig struct {
	QuietPrefixes []string
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{QuietPrefixes: []string{"/health", "/api/v1/timer"}}
}

// Logger logs every request after it completes. Bodies are never logged since they
// carry appointment codes and patient identity.
func Logger(config LoggerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		l := requestLogger(c)
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		case quiet(path, config.QuietPrefixes):
			ev = l.Debug()
		default:
			ev = l.Info()
		}

		ev.Str("method", c.Request.Method).
			Str("path", path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("duration", latency).
			Str("user_agent", c.Request.UserAgent()).
			Msg("Request processed")
	}
}

func quiet(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
