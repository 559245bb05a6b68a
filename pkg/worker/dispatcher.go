package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Job is a best-effort unit of background work. Failures are logged and never surfaced to the caller.
type Job struct {
	Name string
	// Attempts defaults to the dispatcher's RetryAttempts when zero.
	Attempts int
	Run      func(ctx context.Context) error
}

// Runner accepts jobs for background execution.
type Runner interface {
	Submit(job Job) bool
}

type DispatcherConfig struct {
	QueueSize     int
	Workers       int
	RetryAttempts int
	RetryDelay    time.Duration
	JobTimeout    time.Duration
}

type Dispatcher struct {
	queue   chan Job
	config  DispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(config DispatcherConfig, logger *logger.Logger, metrics *metrics.Metrics) *Dispatcher {
	// Config validation instead of defaults
	if config.QueueSize <= 0 {
		panic("QueueSize must be greater than 0")
	}
	if config.Workers <= 0 {
		panic("Workers must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.JobTimeout <= 0 {
		panic("JobTimeout must be greater than 0")
	}

	return &Dispatcher{
		queue:   make(chan Job, config.QueueSize),
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the workers. They drain until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting job dispatcher", "workers", d.config.Workers)
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.queue:
					d.process(ctx, job)
				}
			}
		}()
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
	d.logger.Info("Job dispatcher stopped")
}

// Submit enqueues job without blocking. It reports false when the queue is full.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.queue <- job:
		return true
	default:
		d.metrics.JobsDropped.Inc()
		d.logger.Warn(nil, "Job queue full, dropping job", "job", job.Name)
		return false
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	timer := prometheus.NewTimer(d.metrics.JobLatency)
	defer timer.ObserveDuration()

	attempts := job.Attempts
	if attempts <= 0 {
		attempts = d.config.RetryAttempts
	}

	tries := 0
	err := retry(ctx, attempts, d.config.RetryDelay, func() error {
		tries++
		if tries > 1 {
			d.metrics.JobRetries.WithLabelValues(job.Name).Inc()
		}
		jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
		defer cancel()
		return safeRun(jobCtx, job)
	})

	if err != nil {
		d.metrics.JobsProcessed.WithLabelValues(job.Name, "failed").Inc()
		d.logger.Error(err, "Background job failed", "job", job.Name, "attempts", tries)
		return
	}
	d.metrics.JobsProcessed.WithLabelValues(job.Name, "success").Inc()
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
		}
	}
	return err
}

// Inline runs jobs synchronously on the caller's goroutine, for tests and one-shot commands.
type Inline struct {
	Ctx context.Context
}

func (i Inline) Submit(job Job) bool {
	ctx := i.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_ = safeRun(ctx, job)
	return true
}
