package kiosk

import (
	"context"
	"strconv"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/service/flow"
	"github.com/jwalitptl/kiosk-api/internal/service/payment"
	"github.com/jwalitptl/kiosk-api/internal/service/session"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
)

// Delays between screens that advance on their own.
type Config struct {
	ConfirmDelay       time.Duration
	InvalidCodeDelay   time.Duration
	CardValidatedDelay time.Duration
	PaymentDoneDelay   time.Duration
}

// Searcher finds an appointment code from the patient's identity.
type Searcher interface {
	Search(ctx context.Context, info model.PersonalInfo) (string, error)
}

// Service drives the check-in flow: it runs session actions and pushes the resulting screens.
type Service struct {
	store    *session.Store
	flow     *flow.Sequencer
	searcher Searcher
	reader   payment.CardReader
	terminal payment.Terminal
	config   Config
	logger   *logger.Logger
}

func NewService(store *session.Store, sequencer *flow.Sequencer, searcher Searcher, reader payment.CardReader, terminal payment.Terminal, config Config, logger *logger.Logger) *Service {
	return &Service{
		store:    store,
		flow:     sequencer,
		searcher: searcher,
		reader:   reader,
		terminal: terminal,
		config:   config,
		logger:   logger,
	}
}

func (s *Service) Session() model.SessionState {
	return s.store.Snapshot()
}

func (s *Service) Location() model.Location {
	return s.flow.Current()
}

// SubmitCode verifies code entered on the code-entry screen.
func (s *Service) SubmitCode(ctx context.Context, code string) (*model.PatientInfo, error) {
	return s.submit(ctx, code, model.RouteCodeEntry, nil)
}

// SearchPersonal looks up the appointment code from the patient's identity and continues
// as if the code had been typed. No match returns to the search screen with invalidCode.
func (s *Service) SearchPersonal(ctx context.Context, info model.PersonalInfo) (*model.PatientInfo, error) {
	code, err := s.searcher.Search(ctx, info)
	if err != nil {
		if errors.Is(err, errors.ErrBadRequest) {
			return nil, err
		}
		s.back(model.RoutePersonalSearch, model.RouteErrorServer)
		return nil, err
	}
	if code == "" {
		s.back(model.RoutePersonalSearch, model.RouteErrorInvalidCode)
		return nil, errors.InvalidCode("")
	}
	return s.submit(ctx, code, model.RoutePersonalSearch, model.Params{model.ParamFromPersonalSearch: "true"})
}

func (s *Service) submit(ctx context.Context, code string, entry model.Route, extra model.Params) (*model.PatientInfo, error) {
	if s.store.Snapshot().AppointmentVerified {
		s.store.Reset(session.ReasonNewSession)
	}

	params := extra.Clone()
	params[model.ParamCode] = code
	if err := s.flow.Navigate(model.RouteVerification, params); err != nil {
		return nil, err
	}

	lease := s.store.Lease()
	patient, err := s.store.VerifyAndLoad(ctx, code)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrSessionReset):
		return nil, err
	case errors.Is(err, errors.ErrInvalidCode):
		s.flow.NavigateAfter(s.config.InvalidCodeDelay, entry, model.Params{model.ParamError: model.RouteErrorInvalidCode})
		return nil, err
	case errors.Is(err, errors.ErrIncomplete):
		s.back(entry, "")
		return nil, err
	default:
		s.back(entry, model.RouteErrorServer)
		return nil, err
	}

	next := confirmedParams(code, patient)
	s.flow.After(s.config.ConfirmDelay, func() {
		if !s.store.Current(lease) {
			return
		}
		if err := s.store.Confirm(""); err != nil {
			s.logger.Warn(err, "Appointment confirmation not sent", "code", code)
		}
		if err := s.flow.Navigate(model.RouteAppointmentConfirmed, next); err != nil {
			s.logger.Warn(err, "Could not show confirmed appointment", "code", code)
		}
	})
	return patient, nil
}

func (s *Service) back(entry model.Route, reason string) {
	params := model.Params{}
	if reason != "" {
		params[model.ParamError] = reason
	}
	if err := s.flow.Navigate(entry, params); err != nil {
		s.logger.Warn(err, "Could not return to entry screen", "route", string(entry))
	}
}

func confirmedParams(code string, patient *model.PatientInfo) model.Params {
	p := model.Params{
		model.ParamCode:       code,
		model.ParamName:       patient.Nom,
		model.ParamPrice:      strconv.FormatFloat(patient.Price, 'f', 2, 64),
		model.ParamCouverture: strconv.FormatFloat(patient.Couverture, 'f', 2, 64),
	}
	if patient.ID != nil {
		p[model.ParamAppointmentID] = strconv.FormatInt(*patient.ID, 10)
	}
	return p
}

// Confirm re-sends the confirmation of the loaded appointment.
func (s *Service) Confirm() error {
	return s.store.Confirm("")
}

// ReadHealthCard reads the card, shows the validated screen, then moves on to the bill.
func (s *Service) ReadHealthCard(ctx context.Context) (*model.HealthCard, error) {
	lease := s.store.Lease()
	snap := s.store.Snapshot()
	if !snap.AppointmentVerified {
		return nil, errors.Flow("appointment is not verified")
	}

	ctx, stop := session.Bind(ctx, lease.Ctx)
	defer stop()

	card, err := s.reader.ReadHealthCard(ctx)
	if err != nil {
		if lease.Ctx.Err() != nil {
			return nil, errors.SessionReset()
		}
		return nil, errors.Internal(err)
	}
	if err := s.store.InsertHealthCard(lease, card); err != nil {
		return nil, err
	}
	if err := s.flow.Navigate(model.RouteCarteVitaleValidated, nil); err != nil {
		return nil, err
	}
	s.flow.NavigateAfter(s.config.CardValidatedDelay, model.RoutePaymentConfirmation, billParams(snap))

	return s.store.Snapshot().HealthCard, nil
}

func billParams(snap model.SessionState) model.Params {
	p := model.Params{model.ParamCode: snap.AppointmentCode}
	if snap.Patient != nil {
		p[model.ParamPrice] = strconv.FormatFloat(snap.Patient.Price, 'f', 2, 64)
		p[model.ParamCouverture] = strconv.FormatFloat(snap.Patient.Couverture, 'f', 2, 64)
	}
	return p
}

// Pay charges the remainder due, shows the success screen and returns home after a delay.
func (s *Service) Pay(ctx context.Context) (*model.PaymentReceipt, error) {
	lease := s.store.Lease()
	snap := s.store.Snapshot()
	if snap.Payment == nil {
		return nil, errors.Flow("no bill to pay")
	}
	if snap.PaymentCompleted {
		return nil, errors.Flow("payment already completed")
	}

	ctx, stop := session.Bind(ctx, lease.Ctx)
	defer stop()

	receipt, err := s.terminal.Charge(ctx, snap.Payment.TotalAmount)
	if err != nil {
		if lease.Ctx.Err() != nil {
			return nil, errors.SessionReset()
		}
		return nil, errors.Internal(err)
	}
	if err := s.store.CompletePayment(lease, receipt); err != nil {
		return nil, err
	}
	if err := s.flow.Navigate(model.RoutePaymentSuccess, model.Params{model.ParamCode: snap.AppointmentCode}); err != nil {
		return nil, err
	}
	s.flow.After(s.config.PaymentDoneDelay, func() {
		if s.store.Current(lease) {
			s.GoHome(session.ReasonHome)
		}
	})
	return receipt, nil
}

// Navigate pushes a screen requested by the front-end. Going home always starts a fresh session.
func (s *Service) Navigate(route model.Route, params model.Params) error {
	switch route {
	case model.RouteHome:
		s.GoHome(session.ReasonHome)
		return nil
	case model.RouteCarteVitale:
		s.store.ResetPayment()
	}
	return s.flow.Navigate(route, params)
}

// GoHome resets the session and shows the idle screen.
func (s *Service) GoHome(reason string) {
	s.store.Reset(reason)
	s.flow.Home()
}

// Expire is called by the inactivity supervisor.
func (s *Service) Expire() {
	s.GoHome(session.ReasonInactivity)
}
