package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/kiosk-api/internal/handler"
	promhandler "github.com/jwalitptl/kiosk-api/internal/handler/prometheus"
	"github.com/jwalitptl/kiosk-api/internal/middleware"
	"github.com/jwalitptl/kiosk-api/pkg/event"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// InteractionHandler takes the middleware that marks its requests as screen interaction.
type InteractionHandler interface {
	RegisterRoutes(*gin.RouterGroup, ...gin.HandlerFunc)
}

type Router struct {
	engine    *gin.Engine
	kioskH    InteractionHandler
	documentH Handler
	streamH   Handler
	healthH   Handler
	metrics   *promhandler.Handler
	activity  *event.Bus[event.Activity]
	config    RouterConfig
}

type RouterConfig struct {
	Mode       string
	RateLimit  rate.Limit
	RateBurst  int
	Timeout    time.Duration
	CodeLength int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	kioskH InteractionHandler,
	documentH Handler,
	streamH Handler,
	healthH Handler,
	metrics *promhandler.Handler,
	activity *event.Bus[event.Activity],
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	r := &Router{
		engine:    engine,
		kioskH:    kioskH,
		documentH: documentH,
		streamH:   streamH,
		healthH:   healthH,
		metrics:   metrics,
		activity:  activity,
		config:    config,
	}

	engine.Use(
		middleware.Recovery(metrics.Panics),
		middleware.RequestID(),
		middleware.Logger(middleware.DefaultLoggerConfig()),
		metrics.Middleware(),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig(config.CodeLength)),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
	)

	timeout := middleware.DefaultTimeoutConfig()
	if config.Timeout > 0 {
		timeout.Duration = config.Timeout
	}
	engine.Use(middleware.Timeout(timeout))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("route not found"))
	})

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	api.GET("/health/metrics", r.metrics.Handler())

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})
	r.kioskH.RegisterRoutes(api, limiter.RateLimit(), middleware.Activity(r.activity))

	r.documentH.RegisterRoutes(api)
	r.streamH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
