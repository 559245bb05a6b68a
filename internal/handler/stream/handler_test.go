package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/jwalitptl/kiosk-api/pkg/event"
	"github.com/jwalitptl/kiosk-api/pkg/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_RelaysActivityAndBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub(zerolog.Nop())
	bus := event.NewBus[event.Activity]()
	got := make(chan event.Activity, 1)
	bus.Subscribe(func(a event.Activity) { got <- a })

	r := gin.New()
	NewHandler(hub, bus).RegisterRoutes(&r.RouterGroup)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillawebsocket.TextMessage, []byte(`{"action":"activity","kind":"foreground"}`)))
	select {
	case a := <-got:
		assert.Equal(t, event.ActivityForeground, a.Kind)
	case <-time.After(time.Second):
		t.Fatal("activity frame was not relayed")
	}

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(event.NewEnvelope(event.TimerUpdated, "s-1", map[string]int{"timeLeft": 9}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"timer.updated"`)
}
