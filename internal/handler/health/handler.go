package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

const (
	statusUp       = "UP"
	statusDegraded = "DEGRADED"
	statusDown     = "DOWN"
)

type Handler struct {
	checks   map[string]Check
	optional map[string]bool
	timeout  time.Duration
}

type Option func(*Handler)

// Optional marks checks whose failure leaves the kiosk usable, such as the backend
// while the local fallback data can still serve appointments.
func Optional(names ...string) Option {
	return func(h *Handler) {
		for _, n := range names {
			h.optional[n] = true
		}
	}
}

func NewHandler(checks map[string]Check, opts ...Option) *Handler {
	h := &Handler{
		checks:   checks,
		optional: map[string]bool{},
		timeout:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusUp})
}

// ReadinessCheck runs every check concurrently under one deadline.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = gin.H{}
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				mu.Lock()
				failed[name] = err.Error()
				mu.Unlock()
			}
		}(name, check)
	}
	wg.Wait()

	status := statusUp
	for name := range failed {
		if !h.optional[name] {
			status = statusDown
			break
		}
		status = statusDegraded
	}

	switch status {
	case statusUp:
		c.JSON(http.StatusOK, gin.H{"status": status})
	case statusDegraded:
		c.JSON(http.StatusOK, gin.H{"status": status, "checks": failed})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": status, "checks": failed})
	}
}
