package flow

import (
	"sync"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
)

// SessionSource exposes the session the guards are evaluated against.
type SessionSource interface {
	Snapshot() model.SessionState
}

// Sequencer owns the current screen. Every navigation cancels the delayed transitions
// scheduled for the screen being left.
type Sequencer struct {
	session   SessionSource
	guards    Guards
	scheduler *Scheduler
	routes    *event.Bus[model.Location]
	logger    *logger.Logger

	// order serialises a navigation with the delivery of its route event.
	order   sync.Mutex
	mu      sync.Mutex
	current model.Location
}

func NewSequencer(session SessionSource, guards Guards, logger *logger.Logger) *Sequencer {
	return &Sequencer{
		session:   session,
		guards:    guards,
		scheduler: NewScheduler(),
		routes:    event.NewBus[model.Location](),
		logger:    logger,
		current:   model.Location{Route: model.RouteHome, Params: model.Params{}},
	}
}

// Navigate pushes route with params if its guard allows it.
func (q *Sequencer) Navigate(route model.Route, params model.Params) error {
	q.order.Lock()
	defer q.order.Unlock()

	if err := q.guards.Check(route, q.session.Snapshot(), params); err != nil {
		return err
	}

	loc := model.Location{Route: route, Params: params.Clone()}

	q.mu.Lock()
	q.scheduler.CancelAll()
	q.current = loc
	q.mu.Unlock()

	q.logger.Debug("Route changed", "route", string(route))
	q.routes.Publish(model.Location{Route: loc.Route, Params: loc.Params.Clone()})
	return nil
}

// Home returns to the idle screen. It is always allowed.
func (q *Sequencer) Home() {
	_ = q.Navigate(model.RouteHome, nil)
}

func (q *Sequencer) Current() model.Location {
	q.mu.Lock()
	defer q.mu.Unlock()
	return model.Location{Route: q.current.Route, Params: q.current.Params.Clone()}
}

// After schedules fn for the current screen. It is cancelled by the next navigation.
func (q *Sequencer) After(delay time.Duration, fn func()) func() {
	return q.scheduler.Schedule(delay, fn)
}

// NavigateAfter is After with a navigation. A guard failure at fire time is logged and dropped.
func (q *Sequencer) NavigateAfter(delay time.Duration, route model.Route, params model.Params) func() {
	params = params.Clone()
	return q.After(delay, func() {
		if err := q.Navigate(route, params); err != nil {
			q.logger.Warn(err, "Delayed transition rejected", "route", string(route))
		}
	})
}

// OnRouteChange registers fn for every completed navigation. Deliveries are serialised in
// the order navigations were applied; fn must not navigate.
func (q *Sequencer) OnRouteChange(fn func(model.Location)) func() {
	return q.routes.Subscribe(fn)
}

func (q *Sequencer) Pending() int {
	return q.scheduler.Pending()
}

// Close cancels every pending transition.
func (q *Sequencer) Close() {
	q.scheduler.CancelAll()
}
