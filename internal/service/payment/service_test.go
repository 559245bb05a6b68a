package payment

import (
	"context"
	"testing"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_FallbackRecord(t *testing.T) {
	repo := memory.NewFallbackRepository()
	patient, ok := repo.FindPatient("123456")
	require.True(t, ok)

	info := NewService(repo, 6).Build("123456", patient)

	assert.Equal(t, "12345", info.ID)
	assert.Equal(t, "30.00 euro", info.Consultation.Amount)
	assert.Equal(t, "-18.00 euro", info.Mutuelle.Amount)
	assert.Equal(t, "-6.00 euro", info.RegimeObligatoire.Amount)
	assert.Equal(t, "12.00 €", info.Total)
	assert.Equal(t, 12.0, info.TotalAmount)
	assert.Nil(t, info.AppointmentID)
}

func TestBuild_LiveAppointment(t *testing.T) {
	id := int64(42)
	patient := &model.PatientInfo{ID: &id}
	patient.SetBilling(25, 40)

	info := NewService(memory.NewFallbackRepository(), 6).Build("777777", patient)

	assert.Equal(t, "42", info.ID)
	assert.Equal(t, int64(42), *info.AppointmentID)
	assert.Equal(t, "Consultation médicale", info.Consultation.Label)
	assert.Equal(t, "0.00 €", info.Total)
}

func TestBuild_IsFreshEachTime(t *testing.T) {
	patient := &model.PatientInfo{}
	patient.SetBilling(30, 18)
	svc := NewService(nil, 6)

	a := svc.Build("555555", patient)
	b := svc.Build("555555", patient)
	assert.NotSame(t, a, b)
	assert.Equal(t, "555555", a.ID)
}

func TestSimulatedDevices(t *testing.T) {
	fixed := time.Date(2025, 2, 20, 14, 30, 0, 0, time.UTC)

	card, err := SimulatedReader{Now: func() time.Time { return fixed }}.ReadHealthCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, card.ReadAt)

	receipt, err := SimulatedTerminal{}.Charge(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, 12.0, receipt.Amount)
	assert.NotEmpty(t, receipt.Reference)

	_, err = SimulatedTerminal{}.Charge(context.Background(), -1)
	assert.Error(t, err)
}

func TestSimulatedDevices_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SimulatedReader{Delay: time.Hour}.ReadHealthCard(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = SimulatedTerminal{Delay: time.Hour}.Charge(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_ZeroDeductionsHaveNoSign(t *testing.T) {
	patient := &model.PatientInfo{}
	patient.SetBilling(25, 0)

	info := NewService(nil, 0).Build("777777", patient)

	assert.Equal(t, "0.00 euro", info.Mutuelle.Amount)
	assert.Equal(t, "0.00 euro", info.RegimeObligatoire.Amount)
	assert.Equal(t, "25.00 euro", info.Consultation.Amount)
}
