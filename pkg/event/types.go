package event

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	SessionReset         EventType = "session.reset"
	AppointmentResolved  EventType = "appointment.resolved"
	AppointmentConfirmed EventType = "appointment.confirmed"
	HealthCardRead       EventType = "card.read"
	PaymentCompleted     EventType = "payment.completed"
	RouteChanged         EventType = "route.changed"
	TimerUpdated         EventType = "timer.updated"
)

type ActivityKind string

const (
	ActivityTap        ActivityKind = "tap"
	ActivityForeground ActivityKind = "foreground"
)

// Activity is a user interaction signal fed to the inactivity supervisor.
type Activity struct {
	Kind ActivityKind `json:"kind"`
	At   time.Time    `json:"at"`
}

// Envelope is the wire form of every event pushed to screens and the broker.
type Envelope struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func NewEnvelope(eventType EventType, sessionID string, data interface{}) Envelope {
	return Envelope{
		ID:        uuid.New(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
