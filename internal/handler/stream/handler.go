package stream

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/websocket"
	"github.com/rs/zerolog/log"
)

// Handler serves the live event stream and relays interaction frames from screens.
type Handler struct {
	hub *websocket.Hub
}

// NewHandler routes {"action":"activity","kind":"tap"|"foreground"} frames to activity.
func NewHandler(hub *websocket.Hub, activity *event.Bus[event.Activity]) *Handler {
	hub.OnMessage(func(_ *websocket.Client, msg websocket.ClientMessage) {
		if msg.Action != "activity" {
			return
		}
		kind := event.ActivityTap
		if event.ActivityKind(msg.Kind) == event.ActivityForeground {
			kind = event.ActivityForeground
		}
		activity.Publish(event.Activity{Kind: kind, At: time.Now().UTC()})
	})
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Stream)
}

func (h *Handler) Stream(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		log.Warn().Err(err).Str("request_id", c.GetString("request_id")).Msg("websocket upgrade failed")
	}
}
