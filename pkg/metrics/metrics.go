package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Backend API metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	BreakerOpen     prometheus.Gauge

	// Verification and resolution metrics
	Verifications   *prometheus.CounterVec
	ResolutionTiers *prometheus.CounterVec
	RoomLookups     *prometheus.CounterVec

	// Session metrics
	SessionResets        *prometheus.CounterVec
	InactivityExpiries   prometheus.Counter
	PaymentsCompleted    prometheus.Counter
	NotificationFailures *prometheus.CounterVec

	// Dispatcher metrics
	JobsProcessed *prometheus.CounterVec
	JobRetries    *prometheus.CounterVec
	JobsDropped   prometheus.Counter
	JobLatency    prometheus.Histogram
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	subsystem := "kiosk"

	return &Metrics{
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_requests_total",
			Help:      "Total number of backend API requests",
		}, []string{"operation", "status"}),
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend API requests",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"operation"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_breaker_open",
			Help:      "1 while the backend circuit breaker is open",
		}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "code_verifications_total",
			Help:      "Appointment code verifications by outcome",
		}, []string{"outcome"}),
		ResolutionTiers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolution_tier_total",
			Help:      "Appointment resolutions by tier and outcome",
		}, []string{"tier", "outcome"}),
		RoomLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "room_lookups_total",
			Help:      "Room and physician lookups by outcome",
		}, []string{"outcome"}),

		SessionResets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_resets_total",
			Help:      "Session resets by reason",
		}, []string{"reason"}),
		InactivityExpiries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inactivity_expiries_total",
			Help:      "Sessions ended by the inactivity supervisor",
		}),
		PaymentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payments_completed_total",
			Help:      "Payments completed on the kiosk terminal",
		}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that failed",
		}, []string{"kind"}),

		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_processed_total",
			Help:      "Background jobs processed by status",
		}, []string{"job", "status"}),
		JobRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_retry_attempts_total",
			Help:      "Total number of retry attempts for background jobs",
		}, []string{"job"}),
		JobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_dropped_total",
			Help:      "Background jobs dropped because the queue was full",
		}),
		JobLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Time spent running background jobs",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

// New creates metrics on a private registry. Used by tests and one-shot CLI commands.
func New(namespace string) *Metrics {
	return NewMetrics(prometheus.NewRegistry(), namespace)
}
