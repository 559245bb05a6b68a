package inactivity

import (
	"context"
	"testing"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		InitialDelay:     5,
		TimeoutDuration:  30,
		WarningThreshold: 10,
		DisabledRoutes:   []model.Route{model.RouteHome},
		Tick:             time.Second,
	}
}

func newSupervisor(config Config, onExpire func()) (*Supervisor, *metrics.Metrics) {
	m := metrics.New("test")
	return NewSupervisor(config, onExpire, logger.Nop(), m), m
}

func ticks(s *Supervisor, n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func TestSupervisor_ExpiresExactlyOnce(t *testing.T) {
	var expiries int
	var s *Supervisor
	s, m := newSupervisor(testConfig(), func() {
		expiries++
		s.RouteChanged(model.RouteHome)
	})
	s.RouteChanged(model.RouteCodeEntry)

	ticks(s, 5+30-1)
	assert.Equal(t, 0, expiries)
	assert.Equal(t, 1, s.State().TimeLeft)

	s.Tick()
	assert.Equal(t, 1, expiries)

	ticks(s, 1000)
	assert.Equal(t, 1, expiries)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InactivityExpiries))

	st := s.State()
	assert.Equal(t, model.TimerIdle, st.Phase)
	assert.False(t, st.Visible)
	assert.True(t, st.DisabledOnRoute)
}

func TestSupervisor_ReturnsToIdleAfterExpiry(t *testing.T) {
	var expiries int
	s, _ := newSupervisor(testConfig(), func() { expiries++ })
	s.RouteChanged(model.RouteCarteVitale)

	ticks(s, 35)
	require.Equal(t, 1, expiries)
	assert.Equal(t, model.TimerIdle, s.State().Phase)

	ticks(s, 35)
	assert.Equal(t, 2, expiries)
}

func TestSupervisor_ActivityRestartsAtFullTimeout(t *testing.T) {
	var expiries int
	s, _ := newSupervisor(testConfig(), func() { expiries++ })
	s.RouteChanged(model.RoutePayment)

	ticks(s, 5+29)
	require.Equal(t, 1, s.State().TimeLeft)

	s.Activity()
	st := s.State()
	assert.Equal(t, model.TimerCounting, st.Phase)
	assert.Equal(t, 30, st.TimeLeft)
	assert.False(t, st.Warning)

	ticks(s, 29)
	assert.Equal(t, 0, expiries)
	s.Tick()
	assert.Equal(t, 1, expiries)
}

func TestSupervisor_ActivityWhileIdleRestartsDelay(t *testing.T) {
	s, _ := newSupervisor(testConfig(), nil)
	s.RouteChanged(model.RouteCodeEntry)

	ticks(s, 4)
	s.Activity()
	ticks(s, 4)
	assert.Equal(t, model.TimerIdle, s.State().Phase)

	s.Tick()
	st := s.State()
	assert.Equal(t, model.TimerCounting, st.Phase)
	assert.True(t, st.Visible)
	assert.Equal(t, 30, st.TimeLeft)
}

func TestSupervisor_DisabledRouteNeverCounts(t *testing.T) {
	var expiries int
	s, _ := newSupervisor(testConfig(), func() { expiries++ })

	ticks(s, 10000)
	st := s.State()
	assert.Equal(t, 0, expiries)
	assert.Equal(t, model.TimerIdle, st.Phase)
	assert.False(t, st.Visible)
	assert.True(t, st.DisabledOnRoute)
}

func TestSupervisor_RouteChangeCancelsCountdown(t *testing.T) {
	s, _ := newSupervisor(testConfig(), nil)
	s.RouteChanged(model.RouteCodeEntry)
	ticks(s, 15)
	require.Equal(t, model.TimerCounting, s.State().Phase)

	s.RouteChanged(model.RouteVerification)
	st := s.State()
	assert.Equal(t, model.TimerIdle, st.Phase)
	assert.False(t, st.Visible)

	ticks(s, 4)
	assert.Equal(t, model.TimerIdle, s.State().Phase)
	s.Tick()
	assert.Equal(t, 30, s.State().TimeLeft)

	s.RouteChanged(model.RouteHome)
	assert.False(t, s.State().Visible)
}

func TestSupervisor_ForegroundRearmsIdleDelay(t *testing.T) {
	s, _ := newSupervisor(testConfig(), nil)
	s.RouteChanged(model.RouteCodeEntry)
	ticks(s, 10)
	require.True(t, s.State().Visible)

	s.Foreground()
	assert.Equal(t, model.TimerIdle, s.State().Phase)
	assert.False(t, s.State().Visible)
}

func TestSupervisor_WarningThreshold(t *testing.T) {
	s, _ := newSupervisor(testConfig(), nil)
	s.RouteChanged(model.RouteCodeEntry)

	ticks(s, 5+19)
	assert.Equal(t, 11, s.State().TimeLeft)
	assert.False(t, s.State().Warning)

	s.Tick()
	assert.True(t, s.State().Warning)
}

func TestSupervisor_ZeroInitialDelayCountsImmediately(t *testing.T) {
	config := testConfig()
	config.InitialDelay = 0
	s, _ := newSupervisor(config, nil)

	s.RouteChanged(model.RouteCodeEntry)
	assert.Equal(t, model.TimerCounting, s.State().Phase)
	assert.Equal(t, 30, s.State().TimeLeft)
}

func TestSupervisor_AttachAndSubscribe(t *testing.T) {
	s, _ := newSupervisor(testConfig(), nil)
	bus := event.NewBus[event.Activity]()
	detach := s.Attach(bus)

	var updates []model.TimerState
	unsubscribe := s.Subscribe(func(st model.TimerState) { updates = append(updates, st) })

	s.RouteChanged(model.RouteCodeEntry)
	ticks(s, 10)
	bus.Publish(event.Activity{Kind: event.ActivityTap, At: time.Now()})
	assert.Equal(t, 30, s.State().TimeLeft)

	bus.Publish(event.Activity{Kind: event.ActivityForeground, At: time.Now()})
	assert.Equal(t, model.TimerIdle, s.State().Phase)
	require.NotEmpty(t, updates)
	assert.Equal(t, model.TimerIdle, updates[len(updates)-1].Phase)

	detach()
	unsubscribe()
	assert.Equal(t, 0, bus.Len())

	ticks(s, 10)
	bus.Publish(event.Activity{Kind: event.ActivityTap})
	assert.NotEqual(t, 30, s.State().TimeLeft)
}

func TestSupervisor_RunStopsWithContext(t *testing.T) {
	config := testConfig()
	config.InitialDelay = 1
	config.TimeoutDuration = 1
	config.Tick = time.Millisecond

	expired := make(chan struct{}, 1)
	s, _ := newSupervisor(config, func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	})
	s.RouteChanged(model.RouteCodeEntry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never expired")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
