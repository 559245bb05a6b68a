package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/internal/config"
	"github.com/jwalitptl/kiosk-api/internal/handler/document"
	"github.com/jwalitptl/kiosk-api/internal/handler/health"
	kioskHandler "github.com/jwalitptl/kiosk-api/internal/handler/kiosk"
	promhandler "github.com/jwalitptl/kiosk-api/internal/handler/prometheus"
	"github.com/jwalitptl/kiosk-api/internal/handler/stream"
	"github.com/jwalitptl/kiosk-api/internal/middleware"
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository"
	"github.com/jwalitptl/kiosk-api/internal/repository/memory"
	"github.com/jwalitptl/kiosk-api/internal/router"
	"github.com/jwalitptl/kiosk-api/internal/service/appointment"
	eventService "github.com/jwalitptl/kiosk-api/internal/service/event"
	"github.com/jwalitptl/kiosk-api/internal/service/flow"
	"github.com/jwalitptl/kiosk-api/internal/service/inactivity"
	"github.com/jwalitptl/kiosk-api/internal/service/kiosk"
	"github.com/jwalitptl/kiosk-api/internal/service/payment"
	"github.com/jwalitptl/kiosk-api/internal/service/session"
	"github.com/jwalitptl/kiosk-api/internal/service/verification"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/messaging"
	"github.com/jwalitptl/kiosk-api/pkg/messaging/redis"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/jwalitptl/kiosk-api/pkg/websocket"
	"github.com/jwalitptl/kiosk-api/pkg/worker"
)

// backendDeps is what every command needs to reach appointment data.
type backendDeps struct {
	client   *backend.Client
	known    verification.KnownCodes
	fallback repository.FallbackRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func newBackendDeps(cfg *config.Config, m *metrics.Metrics) backendDeps {
	lg := newLogger(cfg.Log)
	deps := backendDeps{
		client:  backend.NewClient(cfg.Backend, lg.ZL, m),
		logger:  lg,
		metrics: m,
	}
	// Left as untyped nil when disabled so the services skip the fallback tier.
	if cfg.Fallback.Enabled {
		repo := memory.NewFallbackRepository()
		deps.known = repo
		deps.fallback = repo
	}
	return deps
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	level := logger.ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	lg := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	log.Logger = lg.ZL
	return lg
}

func newBroker(ctx context.Context, cfg config.RedisConfig, lg *logger.Logger) messaging.Broker {
	if cfg.URL == "" {
		return messaging.NopBroker{}
	}
	broker, err := redis.NewBroker(ctx, redis.Config{
		URL:            cfg.URL,
		KioskID:        cfg.KioskID,
		MaxRetries:     3,
		RetryBackoff:   100 * time.Millisecond,
		PoolSize:       cfg.PoolSize,
		MinIdleConns:   1,
		MaxFailures:    5,
		BreakerTimeout: 5 * time.Second,
	}, lg.ZL)
	if err != nil {
		lg.Warn(err, "Redis unavailable, events stay local")
		return messaging.NopBroker{}
	}
	return broker
}

func ginMode(env string) string {
	if env == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "kiosk")
	deps := newBackendDeps(cfg, m)
	lg := deps.logger

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		QueueSize:     cfg.Dispatcher.QueueSize,
		Workers:       cfg.Dispatcher.Workers,
		RetryAttempts: cfg.Dispatcher.RetryAttempts,
		RetryDelay:    cfg.Dispatcher.RetryDelay,
		JobTimeout:    cfg.Dispatcher.JobTimeout,
	}, lg.Component("dispatcher"), m)
	dispatcher.Start(ctx)

	broker := newBroker(ctx, cfg.Redis, lg)
	defer broker.Close()

	events := eventService.NewEventService(broker, cfg.Redis.Channel, dispatcher, lg.Component("events"))
	hub := websocket.NewHub(lg.ZL)
	defer events.Stream(hub)()

	appointments := appointment.NewService(deps.client, deps.fallback, cfg.Backend.RoomCacheTTL, lg.Component("appointment"), m)
	verifier := verification.NewService(deps.client, deps.known, cfg.Kiosk.CodeLength, lg.Component("verification"), m)

	store := session.NewStore(ctx, session.Deps{
		Verifier:   verifier,
		Resolver:   appointments,
		Bills:      payment.NewService(deps.fallback, cfg.Kiosk.RegimeObligatoire),
		Jobs:       dispatcher,
		Publisher:  events,
		CodeLength: cfg.Kiosk.CodeLength,
		Logger:     lg.Component("session"),
		Metrics:    m,
	})
	sequencer := flow.NewSequencer(store, flow.DefaultGuards(cfg.Kiosk.CodeLength), lg.Component("flow"))

	kioskSvc := kiosk.NewService(store, sequencer, appointments,
		payment.SimulatedReader{Delay: cfg.Devices.CardReadDelay},
		payment.SimulatedTerminal{Delay: cfg.Devices.PaymentDelay},
		kiosk.Config{
			ConfirmDelay:       cfg.Flow.ConfirmDelay,
			InvalidCodeDelay:   cfg.Flow.InvalidCodeDelay,
			CardValidatedDelay: cfg.Flow.CardValidatedDelay,
			PaymentDoneDelay:   cfg.Flow.PaymentDoneDelay,
		}, lg.Component("kiosk"))

	disabled := make([]model.Route, 0, len(cfg.Inactivity.DisabledRoutes))
	for _, route := range cfg.Inactivity.DisabledRoutes {
		disabled = append(disabled, model.Route(route))
	}
	supervisor := inactivity.NewSupervisor(inactivity.Config{
		InitialDelay:     cfg.Inactivity.InitialDelay,
		TimeoutDuration:  cfg.Inactivity.TimeoutDuration,
		WarningThreshold: cfg.Inactivity.WarningThreshold,
		DisabledRoutes:   disabled,
		Tick:             cfg.Inactivity.Tick,
	}, kioskSvc.Expire, lg.Component("inactivity"), m)

	activity := event.NewBus[event.Activity]()
	defer supervisor.Attach(activity)()
	defer supervisor.Subscribe(func(state model.TimerState) {
		events.Publish(event.TimerUpdated, store.Snapshot().ID, state)
	})()
	defer sequencer.OnRouteChange(func(loc model.Location) {
		supervisor.RouteChanged(loc.Route)
		events.Publish(event.RouteChanged, store.Snapshot().ID, loc)
	})()
	go supervisor.Run(ctx)
	go func() {
		if err := kioskSvc.ListenCommands(ctx, broker, cfg.Redis.CommandChannel); err != nil {
			lg.Warn(err, "Remote commands unavailable")
		}
	}()

	checks := map[string]health.Check{"backend": deps.client.Ready}
	optional := []string{"broker"}
	if cfg.Fallback.Enabled {
		optional = append(optional, "backend")
	}
	if pinger, ok := broker.(interface{ Ping(context.Context) error }); ok {
		checks["broker"] = pinger.Ping
	}

	r := router.NewRouter(
		kioskHandler.NewHandler(kioskSvc, supervisor, activity),
		document.NewHandler(deps.client),
		stream.NewHandler(hub, activity),
		health.NewHandler(checks, health.Optional(optional...)),
		promhandler.New(reg),
		activity,
		router.RouterConfig{
			Mode:       ginMode(cfg.Env),
			RateLimit:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:  cfg.RateLimit.Burst,
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CodeLength: cfg.Kiosk.CodeLength,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("Kiosk API listening", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}
	lg.Info("Shutting down kiosk API")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "Server forced to shutdown")
	}

	sequencer.Close()
	store.Close()
	cancel()
	dispatcher.Wait()

	lg.Info("Kiosk API exited properly")
	return nil
}
