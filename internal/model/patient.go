package model

import "math"

// FrontDeskPlaceholder replaces any logistics field the backend could not provide.
const FrontDeskPlaceholder = "Veuillez vous adresser à l'accueil"

type AppointmentStatus string

const (
	AppointmentStatusValidated AppointmentStatus = "validated"
	AppointmentStatusPending   AppointmentStatus = "pending"
)

// PatientInfo is a resolved appointment as shown on the kiosk screens.
type PatientInfo struct {
	ID                *int64            `json:"id,omitempty"`
	Nom               string            `json:"nom"`
	DateNaissance     string            `json:"dateNaissance"`
	DateRendezVous    string            `json:"dateRendezVous"`
	HeureRendezVous   string            `json:"heureRendezVous"`
	NumeroSecu        string            `json:"numeroSecu"`
	Price             float64           `json:"price"`
	Couverture        float64           `json:"couverture"`
	ResteAPayer       float64           `json:"resteAPayer"`
	SalleConsultation string            `json:"salleConsultation"`
	SalleAttente      string            `json:"salleAttente"`
	Medecin           string            `json:"medecin"`
	Verified          bool              `json:"verified"`
	Status            AppointmentStatus `json:"status,omitempty"`
}

// ResteAPayer is the amount left to the patient after coverage. Never negative.
func ResteAPayer(price, couverture float64) float64 {
	return math.Max(0, math.Round((price-couverture)*100)/100)
}

// SetBilling stores price and coverage and recomputes the remainder.
func (p *PatientInfo) SetBilling(price, couverture float64) {
	p.Price = price
	p.Couverture = couverture
	p.ResteAPayer = ResteAPayer(price, couverture)
}

// ApplyPlaceholders fills empty logistics fields with the front-desk placeholder.
func (p *PatientInfo) ApplyPlaceholders() {
	if p.SalleConsultation == "" {
		p.SalleConsultation = FrontDeskPlaceholder
	}
	if p.SalleAttente == "" {
		p.SalleAttente = FrontDeskPlaceholder
	}
	if p.Medecin == "" {
		p.Medecin = FrontDeskPlaceholder
	}
}

func (p *PatientInfo) Clone() *PatientInfo {
	if p == nil {
		return nil
	}
	c := *p
	if p.ID != nil {
		id := *p.ID
		c.ID = &id
	}
	return &c
}

// PersonalInfo identifies a patient who does not have their code at hand.
// BirthDate is DD/MM/YYYY as typed on the kiosk.
type PersonalInfo struct {
	LastName  string `json:"lastName" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	BirthDate string `json:"birthDate" binding:"required,birthdate"`
}
