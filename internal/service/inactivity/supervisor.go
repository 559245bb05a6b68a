package inactivity

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
)

// Config values are in seconds; one Tick is one second of wall time.
type Config struct {
	InitialDelay     int
	TimeoutDuration  int
	WarningThreshold int
	DisabledRoutes   []model.Route
	Tick             time.Duration
}

// Supervisor runs the Idle -> Counting -> Expired countdown that sends an abandoned kiosk home.
type Supervisor struct {
	config   Config
	disabled map[model.Route]struct{}
	onExpire func()
	updates  *event.Bus[model.TimerState]
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	phase    model.TimerPhase
	idle     int
	left     int
	route    model.Route
	offRoute bool
}

// NewSupervisor starts on the home route. onExpire runs outside the supervisor lock and
// may navigate, which feeds back through RouteChanged.
func NewSupervisor(config Config, onExpire func(), logger *logger.Logger, metrics *metrics.Metrics) *Supervisor {
	s := &Supervisor{
		config:   config,
		disabled: make(map[model.Route]struct{}, len(config.DisabledRoutes)),
		onExpire: onExpire,
		updates:  event.NewBus[model.TimerState](),
		logger:   logger,
		metrics:  metrics,
	}
	for _, r := range config.DisabledRoutes {
		s.disabled[r] = struct{}{}
	}
	s.enter(model.RouteHome)
	return s
}

// Subscribe registers fn for every visible change of the countdown.
func (s *Supervisor) Subscribe(fn func(model.TimerState)) func() {
	return s.updates.Subscribe(fn)
}

func (s *Supervisor) State() model.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Supervisor) stateLocked() model.TimerState {
	counting := s.phase == model.TimerCounting && !s.offRoute
	st := model.TimerState{
		Phase:           s.phase,
		Visible:         counting,
		DisabledOnRoute: s.offRoute,
	}
	if counting {
		st.TimeLeft = s.left
		st.Warning = s.left <= s.config.WarningThreshold
	}
	return st
}

// Tick advances the machine by one second.
func (s *Supervisor) Tick() {
	s.mu.Lock()
	if s.offRoute {
		s.mu.Unlock()
		return
	}

	changed, expired := false, false
	switch s.phase {
	case model.TimerIdle:
		s.idle++
		if s.idle >= s.config.InitialDelay {
			s.startCounting()
			changed = true
		}
	case model.TimerCounting:
		s.left--
		changed = true
		if s.left <= 0 {
			s.left = 0
			s.phase = model.TimerExpired
			expired = true
		}
	}
	state := s.stateLocked()
	s.mu.Unlock()

	if changed {
		s.updates.Publish(state)
	}
	if expired {
		s.expire()
	}
}

func (s *Supervisor) expire() {
	s.metrics.InactivityExpiries.Inc()
	s.logger.Info("Inactivity timeout reached, returning to home")

	if s.onExpire != nil {
		s.onExpire()
	}

	s.mu.Lock()
	if s.phase == model.TimerExpired {
		s.rearm()
	}
	state := s.stateLocked()
	s.mu.Unlock()
	s.updates.Publish(state)
}

// Activity handles a tap. While counting it restarts the countdown at the full timeout.
func (s *Supervisor) Activity() {
	s.mu.Lock()
	if s.offRoute {
		s.mu.Unlock()
		return
	}
	var changed bool
	switch s.phase {
	case model.TimerIdle:
		s.idle = 0
	case model.TimerCounting:
		s.left = s.config.TimeoutDuration
		changed = true
	}
	state := s.stateLocked()
	s.mu.Unlock()

	if changed {
		s.updates.Publish(state)
	}
}

// Foreground handles the app returning from background by rearming the idle delay.
func (s *Supervisor) Foreground() {
	s.mu.Lock()
	if s.offRoute || s.phase == model.TimerExpired {
		s.mu.Unlock()
		return
	}
	wasCounting := s.phase == model.TimerCounting
	s.rearm()
	state := s.stateLocked()
	s.mu.Unlock()

	if wasCounting || state.Visible {
		s.updates.Publish(state)
	}
}

// RouteChanged cancels any countdown and restarts the idle delay on the new route.
func (s *Supervisor) RouteChanged(route model.Route) {
	s.mu.Lock()
	s.enter(route)
	state := s.stateLocked()
	s.mu.Unlock()
	s.updates.Publish(state)
}

func (s *Supervisor) enter(route model.Route) {
	s.route = route
	_, s.offRoute = s.disabled[route]
	s.rearm()
}

func (s *Supervisor) rearm() {
	s.phase = model.TimerIdle
	s.idle = 0
	s.left = 0
	if !s.offRoute && s.config.InitialDelay <= 0 {
		s.startCounting()
	}
}

func (s *Supervisor) startCounting() {
	s.phase = model.TimerCounting
	s.idle = 0
	s.left = s.config.TimeoutDuration
}

// Attach feeds activity from bus into the supervisor and returns the disposer.
func (s *Supervisor) Attach(bus *event.Bus[event.Activity]) func() {
	return bus.Subscribe(func(a event.Activity) {
		switch a.Kind {
		case event.ActivityForeground:
			s.Foreground()
		default:
			s.Activity()
		}
	})
}

// Run ticks until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
