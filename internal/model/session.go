package model

import "time"

type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindInvalidCode ErrorKind = "invalidCode"
	ErrorKindIncomplete  ErrorKind = "incomplete"
	ErrorKindServer      ErrorKind = "serverError"
	ErrorKindTimeout     ErrorKind = "timeout"
)

// SessionState is everything the kiosk knows about the patient currently in front of it.
type SessionState struct {
	ID                   string          `json:"id"`
	AppointmentCode      string          `json:"appointmentCode"`
	Patient              *PatientInfo    `json:"patient"`
	Payment              *PaymentInfo    `json:"payment"`
	PaymentCode          string          `json:"paymentCode,omitempty"`
	HealthCard           *HealthCard     `json:"healthCard,omitempty"`
	Receipt              *PaymentReceipt `json:"receipt,omitempty"`
	AppointmentVerified  bool            `json:"appointmentVerified"`
	AppointmentConfirmed bool            `json:"appointmentConfirmed"`
	HealthCardInserted   bool            `json:"healthCardInserted"`
	PaymentCompleted     bool            `json:"paymentCompleted"`
	Loading              bool            `json:"loading"`
	Error                *string         `json:"error"`
	ErrorKind            ErrorKind       `json:"errorKind,omitempty"`
	StartedAt            time.Time       `json:"startedAt"`
}

// Clone returns a deep copy safe to hand outside the store.
func (s SessionState) Clone() SessionState {
	c := s
	c.Patient = s.Patient.Clone()
	if s.Payment != nil {
		p := *s.Payment
		if s.Payment.AppointmentID != nil {
			id := *s.Payment.AppointmentID
			p.AppointmentID = &id
		}
		c.Payment = &p
	}
	if s.HealthCard != nil {
		h := *s.HealthCard
		c.HealthCard = &h
	}
	if s.Receipt != nil {
		r := *s.Receipt
		c.Receipt = &r
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return c
}
