package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/internal/model"
)

const (
	displayDate = "02/01/2006"
	displayTime = "15:04"
	isoDate     = "2006-01-02"
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	isoDate,
}

func parseISO(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// splitDateTime turns an ISO timestamp into DD/MM/YYYY and HH:MM.
// Offsets are kept as sent; the kiosk displays the clinic's local wall time.
func splitDateTime(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	t, ok := parseISO(value)
	if !ok {
		return value, ""
	}
	return t.Format(displayDate), t.Format(displayTime)
}

// formatBirthDate accepts ISO or display dates and returns DD/MM/YYYY.
func formatBirthDate(value string) string {
	if t, ok := parseISO(value); ok {
		return t.Format(displayDate)
	}
	return value
}

// ToISODate converts a DD/MM/YYYY kiosk date to YYYY-MM-DD. ISO input is passed through.
func ToISODate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(displayDate, value); err == nil {
		return t.Format(isoDate), nil
	}
	if t, err := time.Parse(isoDate, value); err == nil {
		return t.Format(isoDate), nil
	}
	return "", fmt.Errorf("invalid birth date %q", value)
}

// displayName picks the first usable of fullName, "nom prenom", nom, prenom.
func displayName(p *backend.PatientPayload) string {
	if p == nil {
		return "Patient"
	}
	nom, prenom := strings.TrimSpace(p.Nom), strings.TrimSpace(p.Prenom)
	switch {
	case strings.TrimSpace(p.FullName) != "":
		return strings.TrimSpace(p.FullName)
	case nom != "" && prenom != "":
		return nom + " " + prenom
	case nom != "":
		return nom
	case prenom != "":
		return prenom
	default:
		return "Patient"
	}
}

func physicianName(m *backend.PhysicianPayload) string {
	if m == nil || strings.TrimSpace(m.Nom) == "" {
		return ""
	}
	name := "Dr " + strings.TrimSpace(m.Nom)
	if m.Prenom != nil && strings.TrimSpace(*m.Prenom) != "" {
		name += " " + strings.TrimSpace(*m.Prenom)
	}
	return name
}

// placeholderSecu builds a stable stand-in social-security number from the birth date and appointment id.
func placeholderSecu(birthDate string, id *int64) string {
	yy, mm := "00", "00"
	if t, err := time.Parse(displayDate, birthDate); err == nil {
		yy, mm = t.Format("06"), t.Format("01")
	}
	var suffix int64
	if id != nil {
		suffix = *id % 1000
	}
	return fmt.Sprintf("1 %s %s 99 999 %03d 00", yy, mm, suffix)
}

// fromPayload maps a backend appointment onto PatientInfo. Logistics are left empty.
func fromPayload(p *backend.AppointmentPayload) *model.PatientInfo {
	info := &model.PatientInfo{
		Nom:      displayName(p.Patient),
		Medecin:  physicianName(p.Medecin),
		Verified: true,
		Status:   model.AppointmentStatusValidated,
	}
	if p.ID != nil {
		id := *p.ID
		info.ID = &id
	}
	if p.Etat != "" {
		info.Status = model.AppointmentStatus(p.Etat)
	}
	info.DateRendezVous, info.HeureRendezVous = splitDateTime(p.DateHeure)

	if p.Patient != nil {
		info.DateNaissance = formatBirthDate(p.Patient.DateNaissance)
		info.NumeroSecu = strings.TrimSpace(p.Patient.NumeroSecu)
	}
	if info.NumeroSecu == "" {
		info.NumeroSecu = placeholderSecu(info.DateNaissance, p.ID)
	}

	var price, couverture float64
	if p.Prix != nil {
		price = *p.Prix
	}
	if p.Couverture != nil {
		couverture = *p.Couverture
	}
	info.SetBilling(price, couverture)
	return info
}
