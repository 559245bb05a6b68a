package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/jwalitptl/kiosk-api/pkg/worker"
)

// User-facing error messages.
const (
	MessageInvalidCode = "Code de rendez-vous invalide"
	MessageTimeout     = "Le serveur ne répond pas. Veuillez réessayer plus tard."
	MessageGeneric     = "Erreur lors de la vérification. Veuillez contacter le secrétariat."
	messageIncomplete  = "Veuillez saisir un code à %d chiffres."
)

// Reset reasons.
const (
	ReasonHome       = "home"
	ReasonInactivity = "inactivity"
	ReasonManual     = "manual"
	ReasonNewSession = "new_session"
	ReasonShutdown   = "shutdown"
)

type Verifier interface {
	Verify(ctx context.Context, code string) (bool, error)
}

type Resolver interface {
	Resolve(ctx context.Context, code string) (*model.PatientInfo, error)
	NotifyWaitingRoom(ctx context.Context, code string) bool
	Confirm(ctx context.Context, ref string) error
}

type BillBuilder interface {
	Build(code string, patient *model.PatientInfo) *model.PaymentInfo
}

type Publisher interface {
	Publish(eventType event.EventType, sessionID string, data interface{})
}

// Lease pins an asynchronous operation to the session that started it.
type Lease struct {
	Epoch uint64
	Ctx   context.Context
}

// Store is the single owner of the kiosk session. Every mutation goes through its methods.
// Results computed for a session that has since been reset are discarded.
type Store struct {
	verifier   Verifier
	resolver   Resolver
	bills      BillBuilder
	jobs       worker.Runner
	publisher  Publisher
	codeLength int
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.Mutex
	state    model.SessionState
	epoch    uint64
	inflight int
	root     context.Context
	ctx      context.Context
	cancel   context.CancelFunc
}

type Deps struct {
	Verifier   Verifier
	Resolver   Resolver
	Bills      BillBuilder
	Jobs       worker.Runner
	Publisher  Publisher
	CodeLength int
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// NewStore creates the store with an empty session. Cancelling root ends every session context.
func NewStore(root context.Context, deps Deps) *Store {
	s := &Store{
		verifier:   deps.Verifier,
		resolver:   deps.Resolver,
		bills:      deps.Bills,
		jobs:       deps.Jobs,
		publisher:  deps.Publisher,
		codeLength: deps.CodeLength,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        time.Now,
		root:       root,
	}
	s.ctx, s.cancel = context.WithCancel(root)
	s.state = s.initialState()
	return s
}

func (s *Store) initialState() model.SessionState {
	return model.SessionState{
		ID:        uuid.New().String(),
		StartedAt: s.now().UTC(),
	}
}

// Snapshot returns a deep copy of the current session.
func (s *Store) Snapshot() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) Lease() Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Lease{Epoch: s.epoch, Ctx: s.ctx}
}

// Current reports whether lease still belongs to the live session.
func (s *Store) Current(lease Lease) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lease.Epoch == s.epoch
}

// VerifyAndLoad verifies code, resolves the appointment and builds the bill.
// On failure the session error is set from the failure kind and the error is returned.
func (s *Store) VerifyAndLoad(ctx context.Context, code string) (*model.PatientInfo, error) {
	lease := s.begin()
	defer s.finish(lease)

	ctx, stop := Bind(ctx, lease.Ctx)
	defer stop()

	ok, err := s.verifier.Verify(ctx, code)
	if err == nil && !ok {
		err = errors.InvalidCode(code)
	}

	var patient *model.PatientInfo
	if err == nil {
		patient, err = s.resolver.Resolve(ctx, code)
		if err == nil && (patient == nil || !patient.Verified) {
			err = errors.InvalidCode(code)
		}
	}
	if err != nil {
		return nil, s.fail(lease, err)
	}

	bill := s.bills.Build(code, patient)

	s.mu.Lock()
	if lease.Epoch != s.epoch {
		s.mu.Unlock()
		return nil, errors.SessionReset()
	}
	s.state.AppointmentCode = code
	s.state.Patient = patient.Clone()
	s.state.Payment = bill
	s.state.AppointmentVerified = true
	sessionID := s.state.ID
	s.mu.Unlock()

	s.logger.Info("Appointment loaded", "session_id", sessionID, "code", code)
	s.publish(event.AppointmentResolved, sessionID, patient)

	s.jobs.Submit(worker.Job{
		Name:     "waiting_room",
		Attempts: 1,
		Run: func(ctx context.Context) error {
			s.resolver.NotifyWaitingRoom(ctx, code)
			return nil
		},
	})
	return patient.Clone(), nil
}

func (s *Store) begin() Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.state.Loading = true
	s.state.Error = nil
	s.state.ErrorKind = model.ErrorKindNone
	return Lease{Epoch: s.epoch, Ctx: s.ctx}
}

func (s *Store) finish(lease Lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lease.Epoch != s.epoch {
		return
	}
	s.inflight--
	if s.inflight <= 0 {
		s.inflight = 0
		s.state.Loading = false
	}
}

func (s *Store) fail(lease Lease, err error) error {
	kind, msg := s.describe(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if lease.Epoch != s.epoch {
		return errors.SessionReset()
	}
	s.state.Error = &msg
	s.state.ErrorKind = kind
	s.logger.Warn(err, "Appointment verification failed", "session_id", s.state.ID, "kind", string(kind))
	return err
}

func (s *Store) describe(err error) (model.ErrorKind, string) {
	switch {
	case errors.Is(err, errors.ErrIncomplete):
		return model.ErrorKindIncomplete, fmt.Sprintf(messageIncomplete, s.codeLength)
	case errors.Is(err, errors.ErrInvalidCode):
		return model.ErrorKindInvalidCode, MessageInvalidCode
	case errors.IsAborted(err):
		return model.ErrorKindTimeout, MessageTimeout
	default:
		return model.ErrorKindServer, MessageGeneric
	}
}

// Confirm marks the appointment confirmed on the backend in the background.
// An empty ref confirms the loaded appointment by id, or by code when it has none.
func (s *Store) Confirm(ref string) error {
	s.mu.Lock()
	lease := Lease{Epoch: s.epoch, Ctx: s.ctx}
	if ref == "" {
		switch {
		case s.state.Patient != nil && s.state.Patient.ID != nil:
			ref = strconv.FormatInt(*s.state.Patient.ID, 10)
		default:
			ref = s.state.AppointmentCode
		}
	}
	sessionID := s.state.ID
	s.mu.Unlock()

	if ref == "" {
		return errors.Flow("no appointment to confirm")
	}

	s.jobs.Submit(worker.Job{
		Name: "confirm",
		Run: func(ctx context.Context) error {
			ctx, stop := Bind(ctx, lease.Ctx)
			defer stop()

			if err := s.resolver.Confirm(ctx, ref); err != nil {
				if lease.Ctx.Err() != nil {
					return nil
				}
				s.metrics.NotificationFailures.WithLabelValues("confirm").Inc()
				return err
			}

			s.mu.Lock()
			applied := lease.Epoch == s.epoch
			if applied {
				s.state.AppointmentConfirmed = true
			}
			s.mu.Unlock()
			if applied {
				s.publish(event.AppointmentConfirmed, sessionID, map[string]string{"ref": ref})
			}
			return nil
		},
	})
	return nil
}

// InsertHealthCard records the card read for the session in lease.
func (s *Store) InsertHealthCard(lease Lease, card *model.HealthCard) error {
	s.mu.Lock()
	if lease.Epoch != s.epoch {
		s.mu.Unlock()
		return errors.SessionReset()
	}
	if !s.state.AppointmentVerified {
		s.mu.Unlock()
		return errors.Flow("appointment is not verified")
	}
	c := *card
	if c.NumeroSecu == "" && s.state.Patient != nil {
		c.NumeroSecu = s.state.Patient.NumeroSecu
	}
	s.state.HealthCard = &c
	s.state.HealthCardInserted = true
	sessionID := s.state.ID
	s.mu.Unlock()

	s.publish(event.HealthCardRead, sessionID, c)
	return nil
}

// CompletePayment records a successful charge for the session in lease.
func (s *Store) CompletePayment(lease Lease, receipt *model.PaymentReceipt) error {
	s.mu.Lock()
	if lease.Epoch != s.epoch {
		s.mu.Unlock()
		return errors.SessionReset()
	}
	if s.state.Payment == nil {
		s.mu.Unlock()
		return errors.Flow("no bill to pay")
	}
	r := *receipt
	s.state.Receipt = &r
	s.state.PaymentCode = r.Reference
	s.state.PaymentCompleted = true
	sessionID := s.state.ID
	s.mu.Unlock()

	s.metrics.PaymentsCompleted.Inc()
	s.publish(event.PaymentCompleted, sessionID, r)
	return nil
}

// ResetPayment clears the card and payment progress but keeps the appointment.
func (s *Store) ResetPayment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HealthCard = nil
	s.state.HealthCardInserted = false
	s.state.Receipt = nil
	s.state.PaymentCode = ""
	s.state.PaymentCompleted = false
}

// Reset atomically returns to an empty session and cancels work started for the old one.
func (s *Store) Reset(reason string) {
	s.mu.Lock()
	previous := s.state.ID
	s.epoch++
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(s.root)
	s.inflight = 0
	s.state = s.initialState()
	current := s.state.ID
	s.mu.Unlock()

	s.metrics.SessionResets.WithLabelValues(reason).Inc()
	s.logger.Info("Session reset", "reason", reason, "previous_session", previous, "session_id", current)
	s.publish(event.SessionReset, current, map[string]string{"reason": reason, "previous": previous})
}

// Close cancels the live session context.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *Store) publish(t event.EventType, sessionID string, data interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(t, sessionID, data)
	}
}

// Bind derives a context that ends when either ctx or session ends.
func Bind(ctx, session context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
