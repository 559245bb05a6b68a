package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentBackend is the live clinic backend.
	AppointmentBackend interface {
		Validate(ctx context.Context, code string) (*backend.ValidateResponse, error)
		GetAppointment(ctx context.Context, codeOrID string) (*backend.AppointmentEnvelope, error)
		CheckPersonalInfo(ctx context.Context, lastName, firstName, birthDate string) (*backend.AppointmentEnvelope, error)
		RoomProgramming(ctx context.Context, appointmentID int64) ([]backend.RoomInfo, error)
		SendWaitingRoom(ctx context.Context, code string) error
		ConfirmAppointment(ctx context.Context, ref string, at time.Time) (bool, error)
	}

	// DocumentSource serves invoice and prescription PDFs.
	DocumentSource interface {
		Document(ctx context.Context, kind backend.DocumentKind, id string) (*backend.Document, error)
	}

	// FallbackRepository is the fixed local dataset used when the backend is unreachable.
	FallbackRepository interface {
		IsKnownCode(code string) bool
		FindPatient(code string) (*model.PatientInfo, bool)
		FindPayment(code string) (FallbackPayment, bool)
	}
)

// FallbackPayment holds the billing details the local dataset knows beyond PatientInfo.
type FallbackPayment struct {
	DocumentID        string
	ConsultationLabel string
	MutuelleLabel     string
	RegimeLabel       string
	RegimeObligatoire float64
}
