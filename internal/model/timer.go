package model

type TimerPhase string

const (
	TimerIdle     TimerPhase = "idle"
	TimerCounting TimerPhase = "counting"
	TimerExpired  TimerPhase = "expired"
)

// TimerState is the inactivity countdown as rendered by the screen.
type TimerState struct {
	Phase           TimerPhase `json:"phase"`
	Visible         bool       `json:"visible"`
	TimeLeft        int        `json:"timeLeft"`
	DisabledOnRoute bool       `json:"disabledOnRoute"`
	Warning         bool       `json:"warning"`
}
