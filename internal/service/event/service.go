package event

import (
	"context"
	"fmt"

	evt "github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/messaging"
	"github.com/jwalitptl/kiosk-api/pkg/worker"
)

// Lifecycle events are also forwarded to the broker for the front-desk monitor.
var forwarded = map[evt.EventType]bool{
	evt.SessionReset:         true,
	evt.AppointmentResolved:  true,
	evt.AppointmentConfirmed: true,
	evt.PaymentCompleted:     true,
}

// Broadcaster pushes a value to every connected screen.
type Broadcaster interface {
	Broadcast(v interface{})
}

type EventService struct {
	bus     *evt.Bus[evt.Envelope]
	broker  messaging.Broker
	channel string
	jobs    worker.Runner
	logger  *logger.Logger
}

func NewEventService(broker messaging.Broker, channel string, jobs worker.Runner, logger *logger.Logger) *EventService {
	return &EventService{
		bus:     evt.NewBus[evt.Envelope](),
		broker:  broker,
		channel: channel,
		jobs:    jobs,
		logger:  logger,
	}
}

// Publish wraps data in an envelope and delivers it to local subscribers synchronously.
// Lifecycle events are queued for the broker and never block the caller.
func (s *EventService) Publish(eventType evt.EventType, sessionID string, data interface{}) {
	env := evt.NewEnvelope(eventType, sessionID, data)
	s.bus.Publish(env)

	if !forwarded[eventType] || s.broker == nil {
		return
	}
	queued := s.jobs.Submit(worker.Job{
		Name: "broker_publish",
		Run: func(ctx context.Context) error {
			return s.Emit(ctx, env)
		},
	})
	if !queued {
		s.logger.Warn(nil, "Event dropped, job queue full", "event_type", string(eventType))
	}
}

// Emit sends env to the broker.
func (s *EventService) Emit(ctx context.Context, env evt.Envelope) error {
	if err := s.broker.Publish(ctx, s.channel, env); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", env.Type, err)
	}
	return nil
}

func (s *EventService) Subscribe(fn func(evt.Envelope)) func() {
	return s.bus.Subscribe(fn)
}

// Stream forwards every envelope to out and returns the disposer.
func (s *EventService) Stream(out Broadcaster) func() {
	return s.bus.Subscribe(func(env evt.Envelope) {
		out.Broadcast(env)
	})
}
