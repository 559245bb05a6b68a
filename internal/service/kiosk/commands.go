package kiosk

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/kiosk-api/internal/service/session"
)

// CommandReset sends the kiosk back to the idle screen with a fresh session.
const CommandReset = "reset"

// Command is a message from the front-desk monitor on the kiosk's command channel.
type Command struct {
	Command string `json:"command"`
	Reason  string `json:"reason,omitempty"`
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// ListenCommands applies commands received on channel until ctx is done.
func (s *Service) ListenCommands(ctx context.Context, sub Subscriber, channel string) error {
	msgs, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	for payload := range msgs {
		s.apply(payload)
	}
	return nil
}

func (s *Service) apply(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.logger.Warn(err, "Malformed kiosk command")
		return
	}
	switch cmd.Command {
	case CommandReset:
		s.logger.Info("Remote reset", "reason", cmd.Reason)
		s.GoHome(session.ReasonManual)
	default:
		s.logger.Warn(nil, "Unknown kiosk command", "command", cmd.Command)
	}
}
