package backend

import (
	"bytes"
	"encoding/json"
	"time"
)

type ValidateRequest struct {
	Code string `json:"code"`
}

// ValidateResponse is the body of a 2xx answer to POST /validate.
// The canonical schema is {"success": true}; the other fields are read only by Succeeded's compatibility shim.
type ValidateResponse struct {
	Success     *bool           `json:"success"`
	Status      string          `json:"status,omitempty"`
	Appointment json.RawMessage `json:"appointment,omitempty"`
	Rendezvous  json.RawMessage `json:"rendezvous,omitempty"`
}

// Succeeded reports whether the backend accepted the code.
func (r *ValidateResponse) Succeeded() bool {
	if r == nil {
		return false
	}
	if r.Success != nil {
		return *r.Success
	}
	return legacySuccess(r)
}

// legacySuccess accepts the response shapes older backend versions return.
// TODO: drop once every clinic backend sends the success flag.
func legacySuccess(r *ValidateResponse) bool {
	return r.Status == "success" || present(r.Appointment) || present(r.Rendezvous)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

type PatientPayload struct {
	FullName      string `json:"fullName,omitempty"`
	Nom           string `json:"nom,omitempty"`
	Prenom        string `json:"prenom,omitempty"`
	DateNaissance string `json:"dateNaissance,omitempty"`
	NumeroSecu    string `json:"numeroSecu,omitempty"`
}

type PhysicianPayload struct {
	Nom    string  `json:"nom"`
	Prenom *string `json:"prenom"`
}

// AppointmentPayload is an appointment record as returned by the backend.
type AppointmentPayload struct {
	ID             *int64            `json:"id,omitempty"`
	ValidationCode string            `json:"validationCode,omitempty"`
	DateHeure      string            `json:"dateHeure,omitempty"`
	Etat           string            `json:"etat,omitempty"`
	Prix           *float64          `json:"prix,omitempty"`
	Couverture     *float64          `json:"couverture,omitempty"`
	Patient        *PatientPayload   `json:"patient,omitempty"`
	Medecin        *PhysicianPayload `json:"medecin,omitempty"`
}

// AppointmentEnvelope wraps GET /appointment/{code} and POST /check answers.
type AppointmentEnvelope struct {
	Success        bool                `json:"success"`
	Data           *AppointmentPayload `json:"data"`
	ValidationCode string              `json:"validationCode,omitempty"`
}

// Code returns the validation code of a personal-info search hit.
func (e *AppointmentEnvelope) Code() string {
	if e == nil {
		return ""
	}
	if e.Data != nil && e.Data.ValidationCode != "" {
		return e.Data.ValidationCode
	}
	return e.ValidationCode
}

type CheckRequest struct {
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	DateNaissance string `json:"date_naissance"`
}

type WaitingRoom struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

type Room struct {
	ID            int64         `json:"id"`
	Numero        string        `json:"numero"`
	SalleAttentes []WaitingRoom `json:"salleAttentes"`
}

// RoomInfo is one room programming record for an appointment.
type RoomInfo struct {
	ID       int64            `json:"id"`
	Date     string           `json:"date"`
	Medecin  PhysicianPayload `json:"medecin"`
	Etat     string           `json:"etat"`
	Remarque string           `json:"remarque"`
	Salle    Room             `json:"salle"`
}

type ConfirmRequest struct {
	Code             string    `json:"code"`
	ConfirmationTime time.Time `json:"confirmationTime"`
}

type ConfirmResponse struct {
	Success bool `json:"success"`
}

type DocumentKind string

const (
	DocumentInvoice      DocumentKind = "invoices"
	DocumentPrescription DocumentKind = "prescriptions"
)

func (k DocumentKind) Valid() bool {
	return k == DocumentInvoice || k == DocumentPrescription
}

// Document is a downloaded PDF. Its content is opaque to the kiosk.
type Document struct {
	ContentType string
	Body        []byte
}
