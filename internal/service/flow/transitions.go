package flow

import (
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/service/verification"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
)

// Guard decides whether the kiosk may enter a route given the session and the pushed params.
type Guard func(session model.SessionState, params model.Params) error

// Guards maps every known route to its entry condition. A nil guard always allows entry.
type Guards map[model.Route]Guard

// DefaultGuards gates each step of the check-in flow on the session data it displays.
func DefaultGuards(codeLength int) Guards {
	return Guards{
		model.RouteHome:                 nil,
		model.RouteCodeEntry:            entryScreen,
		model.RoutePersonalSearch:       entryScreen,
		model.RouteVerification:         requireCode(codeLength),
		model.RouteAppointmentConfirmed: requireVerified,
		model.RouteCarteVitale:          requireVerified,
		model.RouteCarteVitaleValidated: requireCard,
		model.RoutePaymentConfirmation:  requirePayment,
		model.RoutePayment:              requirePayment,
		model.RoutePaymentSuccess:       requirePaid,
	}
}

// Check runs the guard for route.
func (g Guards) Check(route model.Route, session model.SessionState, params model.Params) error {
	guard, ok := g[route]
	if !ok {
		return errors.BadRequest("unknown route "+string(route), nil)
	}
	if guard == nil {
		return nil
	}
	return guard(session, params)
}

func entryScreen(_ model.SessionState, params model.Params) error {
	switch params[model.ParamError] {
	case "", model.RouteErrorInvalidCode, model.RouteErrorServer:
		return nil
	default:
		return errors.BadRequest("unsupported error parameter "+params[model.ParamError], nil)
	}
}

func requireCode(length int) Guard {
	return func(session model.SessionState, params model.Params) error {
		code := params[model.ParamCode]
		if code == "" {
			code = session.AppointmentCode
		}
		if !verification.ValidCode(code, length) {
			return errors.Incomplete(length)
		}
		return nil
	}
}

func requireVerified(session model.SessionState, _ model.Params) error {
	if !session.AppointmentVerified || session.Patient == nil {
		return errors.Flow("appointment is not verified")
	}
	return nil
}

func requireCard(session model.SessionState, params model.Params) error {
	if err := requireVerified(session, params); err != nil {
		return err
	}
	if !session.HealthCardInserted {
		return errors.Flow("health card has not been read")
	}
	return nil
}

func requirePayment(session model.SessionState, params model.Params) error {
	if err := requireVerified(session, params); err != nil {
		return err
	}
	if session.Payment == nil {
		return errors.Flow("no payment information")
	}
	return nil
}

func requirePaid(session model.SessionState, params model.Params) error {
	if err := requirePayment(session, params); err != nil {
		return err
	}
	if !session.PaymentCompleted {
		return errors.Flow("payment is not completed")
	}
	return nil
}
