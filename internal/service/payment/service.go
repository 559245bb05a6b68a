package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository"
)

const (
	defaultConsultationLabel = "Consultation médicale"
	defaultMutuelleLabel     = "Mutuelle"
	defaultRegimeLabel       = "Régime Obligatoire"
)

// CardReader reads the patient's health insurance card.
type CardReader interface {
	ReadHealthCard(ctx context.Context) (*model.HealthCard, error)
}

// Terminal charges the patient.
type Terminal interface {
	Charge(ctx context.Context, amount float64) (*model.PaymentReceipt, error)
}

type Service struct {
	fallback repository.FallbackRepository
	regime   float64
}

// NewService builds the bill calculator. regime is the mandatory-regime contribution shown on the bill.
func NewService(fallback repository.FallbackRepository, regime float64) *Service {
	return &Service{fallback: fallback, regime: regime}
}

// Build derives a fresh bill from a resolved appointment. The amount due is the patient's remainder.
func (s *Service) Build(code string, patient *model.PatientInfo) *model.PaymentInfo {
	labels := repository.FallbackPayment{
		ConsultationLabel: defaultConsultationLabel,
		MutuelleLabel:     defaultMutuelleLabel,
		RegimeLabel:       defaultRegimeLabel,
		RegimeObligatoire: s.regime,
	}
	if s.fallback != nil {
		if known, ok := s.fallback.FindPayment(code); ok {
			labels = known
		}
	}

	info := &model.PaymentInfo{
		ID:                documentID(code, patient, labels),
		Consultation:      model.LineItem{Label: labels.ConsultationLabel, Amount: model.FormatAmount(patient.Price)},
		Mutuelle:          model.LineItem{Label: labels.MutuelleLabel, Amount: model.FormatDeduction(patient.Couverture)},
		RegimeObligatoire: model.LineItem{Label: labels.RegimeLabel, Amount: model.FormatDeduction(labels.RegimeObligatoire)},
		TotalAmount:       patient.ResteAPayer,
		Total:             model.FormatTotal(patient.ResteAPayer),
	}
	if patient.ID != nil {
		id := *patient.ID
		info.AppointmentID = &id
	}
	return info
}

func documentID(code string, patient *model.PatientInfo, known repository.FallbackPayment) string {
	switch {
	case known.DocumentID != "":
		return known.DocumentID
	case patient.ID != nil:
		return strconv.FormatInt(*patient.ID, 10)
	default:
		return code
	}
}

// SimulatedReader stands in for the card reader hardware.
type SimulatedReader struct {
	Delay time.Duration
	Now   func() time.Time
}

func (r SimulatedReader) ReadHealthCard(ctx context.Context) (*model.HealthCard, error) {
	if err := wait(ctx, r.Delay); err != nil {
		return nil, err
	}
	return &model.HealthCard{ReadAt: now(r.Now)}, nil
}

// SimulatedTerminal stands in for the payment terminal and approves every charge.
type SimulatedTerminal struct {
	Delay time.Duration
	Now   func() time.Time
}

func (t SimulatedTerminal) Charge(ctx context.Context, amount float64) (*model.PaymentReceipt, error) {
	if amount < 0 {
		return nil, fmt.Errorf("negative amount %.2f", amount)
	}
	if err := wait(ctx, t.Delay); err != nil {
		return nil, err
	}
	return &model.PaymentReceipt{
		Reference: uuid.New().String(),
		Amount:    amount,
		PaidAt:    now(t.Now),
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
