package kiosk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository/memory"
	"github.com/jwalitptl/kiosk-api/internal/service/flow"
	"github.com/jwalitptl/kiosk-api/internal/service/payment"
	"github.com/jwalitptl/kiosk-api/internal/service/session"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/jwalitptl/kiosk-api/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	known map[string]bool
	err   error
}

func (v stubVerifier) Verify(ctx context.Context, code string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.known[code], nil
}

type stubResolver struct {
	mu        sync.Mutex
	repo      *memory.FallbackRepository
	confirmed []string
}

func (r *stubResolver) Resolve(ctx context.Context, code string) (*model.PatientInfo, error) {
	p, ok := r.repo.FindPatient(code)
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *stubResolver) NotifyWaitingRoom(ctx context.Context, code string) bool { return true }

func (r *stubResolver) Confirm(ctx context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, ref)
	return nil
}

func (r *stubResolver) confirmations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.confirmed...)
}

type stubSearcher struct {
	code string
	err  error
}

func (s stubSearcher) Search(ctx context.Context, info model.PersonalInfo) (string, error) {
	return s.code, s.err
}

type fixture struct {
	svc      *Service
	store    *session.Store
	flow     *flow.Sequencer
	resolver *stubResolver
}

func newFixture(t *testing.T, verifier session.Verifier, searcher Searcher) *fixture {
	t.Helper()
	repo := memory.NewFallbackRepository()
	resolver := &stubResolver{repo: repo}
	store := session.NewStore(context.Background(), session.Deps{
		Verifier:   verifier,
		Resolver:   resolver,
		Bills:      payment.NewService(repo, 6),
		Jobs:       worker.Inline{Ctx: context.Background()},
		CodeLength: 6,
		Logger:     logger.Nop(),
		Metrics:    metrics.New("test"),
	})
	sequencer := flow.NewSequencer(store, flow.DefaultGuards(6), logger.Nop())
	t.Cleanup(sequencer.Close)

	svc := NewService(store, sequencer, searcher, payment.SimulatedReader{}, payment.SimulatedTerminal{}, Config{
		ConfirmDelay:       5 * time.Millisecond,
		InvalidCodeDelay:   5 * time.Millisecond,
		CardValidatedDelay: 5 * time.Millisecond,
		PaymentDoneDelay:   5 * time.Millisecond,
	}, logger.Nop())
	return &fixture{svc: svc, store: store, flow: sequencer, resolver: resolver}
}

func knownCodes() stubVerifier {
	return stubVerifier{known: map[string]bool{"123456": true, "460163": true}}
}

func (f *fixture) waitForRoute(t *testing.T, route model.Route) model.Location {
	t.Helper()
	require.Eventually(t, func() bool { return f.flow.Current().Route == route }, time.Second, time.Millisecond)
	return f.flow.Current()
}

func TestSubmitCode_FullCheckInAndPayment(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})

	patient, err := f.svc.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "Dupont Sophie", patient.Nom)

	loc := f.waitForRoute(t, model.RouteAppointmentConfirmed)
	assert.Equal(t, "123456", loc.Params[model.ParamCode])
	assert.Equal(t, "30.00", loc.Params[model.ParamPrice])
	assert.Equal(t, "18.00", loc.Params[model.ParamCouverture])
	assert.Equal(t, []string{"123456"}, f.resolver.confirmations())
	assert.True(t, f.store.Snapshot().AppointmentConfirmed)

	require.NoError(t, f.svc.Navigate(model.RouteCarteVitale, nil))
	card, err := f.svc.ReadHealthCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2 90 01 75 123 456 78", card.NumeroSecu)
	assert.Equal(t, model.RouteCarteVitaleValidated, f.flow.Current().Route)
	f.waitForRoute(t, model.RoutePaymentConfirmation)

	receipt, err := f.svc.Pay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.0, receipt.Amount)
	assert.Equal(t, model.RoutePaymentSuccess, f.flow.Current().Route)

	_, err = f.svc.Pay(context.Background())
	assert.True(t, errors.Is(err, errors.ErrFlow))

	f.waitForRoute(t, model.RouteHome)
	snap := f.store.Snapshot()
	assert.False(t, snap.AppointmentVerified)
	assert.False(t, snap.PaymentCompleted)
}

func TestSubmitCode_InvalidCodeReturnsToEntryAfterDelay(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})

	_, err := f.svc.SubmitCode(context.Background(), "999999")
	assert.True(t, errors.Is(err, errors.ErrInvalidCode))

	loc := f.waitForRoute(t, model.RouteCodeEntry)
	assert.Equal(t, model.RouteErrorInvalidCode, loc.Params[model.ParamError])
	assert.Equal(t, session.MessageInvalidCode, *f.store.Snapshot().Error)
}

func TestSubmitCode_ServerErrorReturnsImmediately(t *testing.T) {
	f := newFixture(t, stubVerifier{err: errors.Server(fmt.Errorf("down"))}, stubSearcher{})

	_, err := f.svc.SubmitCode(context.Background(), "000000")
	assert.True(t, errors.IsServerError(err))

	loc := f.flow.Current()
	assert.Equal(t, model.RouteCodeEntry, loc.Route)
	assert.Equal(t, model.RouteErrorServer, loc.Params[model.ParamError])
	assert.Equal(t, session.MessageGeneric, *f.store.Snapshot().Error)
}

func TestSubmitCode_IncompleteNeverLeavesEntry(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	require.NoError(t, f.svc.Navigate(model.RouteCodeEntry, nil))

	_, err := f.svc.SubmitCode(context.Background(), "123")
	assert.True(t, errors.Is(err, errors.ErrIncomplete))
	assert.Equal(t, model.RouteCodeEntry, f.flow.Current().Route)
}

func TestGoHomeCancelsPendingConfirmation(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	f.svc.config.ConfirmDelay = 50 * time.Millisecond

	_, err := f.svc.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	require.NoError(t, f.svc.Navigate(model.RouteHome, nil))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, model.RouteHome, f.flow.Current().Route)
	assert.Empty(t, f.resolver.confirmations())
	assert.Nil(t, f.store.Snapshot().Patient)
}

func TestExpireResetsSession(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	_, err := f.svc.SubmitCode(context.Background(), "460163")
	require.NoError(t, err)
	before := f.store.Snapshot().ID

	f.svc.Expire()

	snap := f.store.Snapshot()
	assert.NotEqual(t, before, snap.ID)
	assert.Empty(t, snap.AppointmentCode)
	assert.Equal(t, model.RouteHome, f.flow.Current().Route)
}

func TestNewCodeStartsNewSession(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	_, err := f.svc.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	first := f.store.Snapshot().ID

	_, err = f.svc.SubmitCode(context.Background(), "460163")
	require.NoError(t, err)
	snap := f.store.Snapshot()
	assert.NotEqual(t, first, snap.ID)
	assert.Equal(t, "460163", snap.AppointmentCode)
}

func TestSearchPersonal(t *testing.T) {
	info := model.PersonalInfo{LastName: "Ball4", FirstName: "Boubou4", BirthDate: "09/10/1991"}

	f := newFixture(t, knownCodes(), stubSearcher{code: "460163"})
	patient, err := f.svc.SearchPersonal(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, "Ball4 Boubou4", patient.Nom)
	assert.Equal(t, "true", f.flow.Current().Params[model.ParamFromPersonalSearch])

	f = newFixture(t, knownCodes(), stubSearcher{})
	_, err = f.svc.SearchPersonal(context.Background(), info)
	assert.True(t, errors.Is(err, errors.ErrInvalidCode))
	loc := f.flow.Current()
	assert.Equal(t, model.RoutePersonalSearch, loc.Route)
	assert.Equal(t, model.RouteErrorInvalidCode, loc.Params[model.ParamError])

	f = newFixture(t, knownCodes(), stubSearcher{err: errors.Server(fmt.Errorf("down"))})
	_, err = f.svc.SearchPersonal(context.Background(), info)
	assert.True(t, errors.IsServerError(err))
	assert.Equal(t, model.RouteErrorServer, f.flow.Current().Params[model.ParamError])
}

func TestDeviceActionsRequireSession(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})

	_, err := f.svc.ReadHealthCard(context.Background())
	assert.True(t, errors.Is(err, errors.ErrFlow))

	_, err = f.svc.Pay(context.Background())
	assert.True(t, errors.Is(err, errors.ErrFlow))

	assert.True(t, errors.Is(f.svc.Navigate(model.RoutePayment, nil), errors.ErrFlow))
}

type chanSubscriber struct {
	channel string
	msgs    chan []byte
}

func (s *chanSubscriber) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s.channel = channel
	return s.msgs, nil
}

func TestListenCommands_RemoteReset(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	_, err := f.svc.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	before := f.store.Snapshot().ID

	sub := &chanSubscriber{msgs: make(chan []byte, 3)}
	sub.msgs <- []byte(`not json`)
	sub.msgs <- []byte(`{"command":"reboot"}`)
	sub.msgs <- []byte(`{"command":"reset","reason":"front desk"}`)
	close(sub.msgs)

	require.NoError(t, f.svc.ListenCommands(context.Background(), sub, "kiosk.commands"))
	assert.Equal(t, "kiosk.commands", sub.channel)

	snap := f.store.Snapshot()
	assert.NotEqual(t, before, snap.ID)
	assert.Empty(t, snap.AppointmentCode)
	assert.Equal(t, model.RouteHome, f.flow.Current().Route)
}

func TestListenCommands_SubscribeError(t *testing.T) {
	f := newFixture(t, knownCodes(), stubSearcher{})
	err := f.svc.ListenCommands(context.Background(), failingSubscriber{}, "kiosk.commands")
	assert.Error(t, err)
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, fmt.Errorf("redis down")
}
