package appointment

import (
	"testing"

	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayNamePrecedence(t *testing.T) {
	tests := []struct {
		name string
		in   *backend.PatientPayload
		want string
	}{
		{"full name", &backend.PatientPayload{FullName: "Sophie Dupont", Nom: "Dupont", Prenom: "Sophie"}, "Sophie Dupont"},
		{"last and first", &backend.PatientPayload{Nom: "Dupont", Prenom: "Sophie"}, "Dupont Sophie"},
		{"last only", &backend.PatientPayload{Nom: "Dupont"}, "Dupont"},
		{"first only", &backend.PatientPayload{Prenom: "Sophie"}, "Sophie"},
		{"blank", &backend.PatientPayload{FullName: "  "}, "Patient"},
		{"missing", nil, "Patient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.in))
		})
	}
}

func TestSplitDateTime(t *testing.T) {
	tests := []struct {
		in, date, time string
	}{
		{"2025-02-20T14:30:00+01:00", "20/02/2025", "14:30"},
		{"2025-02-20T14:30:00", "20/02/2025", "14:30"},
		{"2025-02-20 09:05:00", "20/02/2025", "09:05"},
		{"2025-02-20", "20/02/2025", "00:00"},
		{"", "", ""},
		{"demain", "demain", ""},
	}
	for _, tt := range tests {
		d, h := splitDateTime(tt.in)
		assert.Equal(t, tt.date, d, tt.in)
		assert.Equal(t, tt.time, h, tt.in)
	}
}

func TestToISODate(t *testing.T) {
	got, err := ToISODate("24/01/1990")
	require.NoError(t, err)
	assert.Equal(t, "1990-01-24", got)

	got, err = ToISODate("1990-01-24")
	require.NoError(t, err)
	assert.Equal(t, "1990-01-24", got)

	_, err = ToISODate("24-01-1990")
	assert.Error(t, err)
}

func TestPlaceholderSecuIsStable(t *testing.T) {
	id := int64(1042)
	a := placeholderSecu("24/01/1990", &id)
	b := placeholderSecu("24/01/1990", &id)

	assert.Equal(t, a, b)
	assert.Equal(t, "1 90 01 99 999 042 00", a)
	assert.Equal(t, "1 00 00 99 999 000 00", placeholderSecu("", nil))
}

func TestFromPayloadSynthesizesSecu(t *testing.T) {
	id := int64(7)
	info := fromPayload(&backend.AppointmentPayload{
		ID:      &id,
		Patient: &backend.PatientPayload{Nom: "Dupont", DateNaissance: "1990-01-24"},
	})

	assert.Equal(t, "1 90 01 99 999 007 00", info.NumeroSecu)
	assert.Equal(t, 0.0, info.ResteAPayer)
	assert.True(t, info.Verified)
}
