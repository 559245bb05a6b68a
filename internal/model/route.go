package model

type Route string

const (
	RouteHome                 Route = "/"
	RouteCodeEntry            Route = "/code-entry"
	RoutePersonalSearch       Route = "/personal-search"
	RouteVerification         Route = "/verification"
	RouteAppointmentConfirmed Route = "/appointment-confirmed"
	RouteCarteVitale          Route = "/carte-vitale"
	RouteCarteVitaleValidated Route = "/carte-vitale-validated"
	RoutePaymentConfirmation  Route = "/payment-confirmation"
	RoutePayment              Route = "/payment"
	RoutePaymentSuccess       Route = "/payment-success"
)

var knownRoutes = map[Route]struct{}{
	RouteHome: {}, RouteCodeEntry: {}, RoutePersonalSearch: {}, RouteVerification: {},
	RouteAppointmentConfirmed: {}, RouteCarteVitale: {}, RouteCarteVitaleValidated: {},
	RoutePaymentConfirmation: {}, RoutePayment: {}, RoutePaymentSuccess: {},
}

func (r Route) Known() bool {
	_, ok := knownRoutes[r]
	return ok
}

// Route parameter keys.
const (
	ParamCode               = "code"
	ParamAppointmentID      = "appointmentId"
	ParamPrice              = "price"
	ParamCouverture         = "couverture"
	ParamError              = "error"
	ParamName               = "name"
	ParamFromPersonalSearch = "fromPersonalSearch"
)

// Values of the error parameter on entry screens.
const (
	RouteErrorInvalidCode = "invalidCode"
	RouteErrorServer      = "serverError"
)

type Params map[string]string

func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Location is a route together with the parameters it was pushed with.
type Location struct {
	Route  Route  `json:"route"`
	Params Params `json:"params"`
}
