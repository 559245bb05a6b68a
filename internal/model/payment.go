package model

import (
	"fmt"
	"time"
)

type LineItem struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// PaymentInfo is the bill shown before payment. It is built once per resolution and only ever replaced.
type PaymentInfo struct {
	// ID is the document id used to download the invoice and prescription.
	ID                string   `json:"id"`
	AppointmentID     *int64   `json:"appointmentId,omitempty"`
	Consultation      LineItem `json:"consultation"`
	Mutuelle          LineItem `json:"mutuelle"`
	RegimeObligatoire LineItem `json:"regimeObligatoire"`
	Total             string   `json:"totalTTC"`
	TotalAmount       float64  `json:"totalAmount"`
}

// FormatAmount renders a line item amount, e.g. "30.00 euro" or "-18.00 euro".
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f euro", amount)
}

// FormatDeduction renders an amount taken off the bill, e.g. "-18.00 euro". Zero stays unsigned.
func FormatDeduction(amount float64) string {
	if amount == 0 {
		return FormatAmount(0)
	}
	return FormatAmount(-amount)
}

// FormatTotal renders the amount due, e.g. "12.00 €".
func FormatTotal(amount float64) string {
	return fmt.Sprintf("%.2f €", amount)
}

type HealthCard struct {
	NumeroSecu string    `json:"numeroSecu"`
	ReadAt     time.Time `json:"readAt"`
}

type PaymentReceipt struct {
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
}
