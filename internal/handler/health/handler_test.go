package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(checks map[string]Check) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(checks).RegisterRoutes(&r.RouterGroup)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestProbes(t *testing.T) {
	r := newRouter(map[string]Check{
		"backend": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, get(r, "/health/live").Code)
	assert.Equal(t, http.StatusOK, get(r, "/health/ready").Code)
}

func TestReadiness_ReportsFailedChecks(t *testing.T) {
	r := newRouter(map[string]Check{
		"backend": func(context.Context) error { return nil },
		"broker":  func(context.Context) error { return fmt.Errorf("connection refused") },
	})

	w := get(r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"broker":"connection refused"`)
	assert.NotContains(t, w.Body.String(), `"backend"`)
}

func TestReadiness_OptionalFailureDegrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(map[string]Check{
		"backend": func(context.Context) error { return fmt.Errorf("circuit breaker is open") },
		"broker":  func(context.Context) error { return nil },
	}, Optional("backend")).RegisterRoutes(&r.RouterGroup)

	w := get(r, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DEGRADED"`)
	assert.Contains(t, w.Body.String(), `"backend":"circuit breaker is open"`)
}
