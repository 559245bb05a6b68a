package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/kiosk-api/pkg/event"
)

// Activity treats every state-changing kiosk request as a screen interaction.
func Activity(bus *event.Bus[event.Activity]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			bus.Publish(event.Activity{Kind: event.ActivityTap, At: time.Now().UTC()})
		}
		c.Next()
	}
}
