package memory

import (
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository"
)

// Default billing applied to fallback records that carry none.
const (
	DefaultPrice      = 30.0
	DefaultCouverture = 18.0
)

type fallbackRecord struct {
	patient model.PatientInfo
	price   *float64
	couv    *float64
	payment repository.FallbackPayment
}

func amount(v float64) *float64 { return &v }

var records = map[string]fallbackRecord{
	"123456": {
		patient: model.PatientInfo{
			Nom:             "Dupont Sophie",
			DateNaissance:   "24/01/1990",
			DateRendezVous:  "20/02/2025",
			HeureRendezVous: "14:30",
			NumeroSecu:      "2 90 01 75 123 456 78",
		},
		payment: repository.FallbackPayment{
			DocumentID:        "12345",
			ConsultationLabel: "Consultation médicale",
			MutuelleLabel:     "Mutuelle Couverte",
			RegimeLabel:       "Regime Obligatoire",
			RegimeObligatoire: 6,
		},
	},
	"460163": {
		patient: model.PatientInfo{
			Nom:             "Ball4 Boubou4",
			DateNaissance:   "09/10/1991",
			DateRendezVous:  "22/04/2025",
			HeureRendezVous: "11:23",
			NumeroSecu:      "2 46 19 71 094 456 78",
		},
		price: amount(37),
		couv:  amount(13),
		payment: repository.FallbackPayment{
			DocumentID:        "98765",
			ConsultationLabel: "consultation",
			MutuelleLabel:     "Mutuelle",
			RegimeLabel:       "Régime Obligatoire",
			RegimeObligatoire: 6.5,
		},
	},
}

// FallbackRepository serves the fixed set of known test appointments.
type FallbackRepository struct{}

func NewFallbackRepository() *FallbackRepository {
	return &FallbackRepository{}
}

func (r *FallbackRepository) IsKnownCode(code string) bool {
	_, ok := records[code]
	return ok
}

// FindPatient materializes a fresh verified record with default billing and front-desk logistics.
func (r *FallbackRepository) FindPatient(code string) (*model.PatientInfo, bool) {
	rec, ok := records[code]
	if !ok {
		return nil, false
	}
	p := rec.patient
	price, couv := DefaultPrice, DefaultCouverture
	if rec.price != nil {
		price = *rec.price
	}
	if rec.couv != nil {
		couv = *rec.couv
	}
	p.SetBilling(price, couv)
	p.ApplyPlaceholders()
	p.Verified = true
	p.Status = model.AppointmentStatusValidated
	return &p, true
}

func (r *FallbackRepository) FindPayment(code string) (repository.FallbackPayment, bool) {
	rec, ok := records[code]
	return rec.payment, ok
}

var _ repository.FallbackRepository = (*FallbackRepository)(nil)
