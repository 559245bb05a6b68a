package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(nil)

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c1, c2 := NewClient(nil), NewClient(nil)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(map[string]string{"type": "session.reset"})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.Send:
			assert.JSONEq(t, `{"type":"session.reset"}`, string(msg))
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHub_DispatchIgnoresMalformed(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var got []ClientMessage
	hub.OnMessage(func(_ *Client, msg ClientMessage) { got = append(got, msg) })

	hub.Dispatch(nil, []byte("not json"))
	hub.Dispatch(nil, []byte(`{"action":"activity","kind":"tap"}`))

	require.Len(t, got, 1)
	assert.Equal(t, "activity", got[0].Action)
	assert.Equal(t, "tap", got[0].Kind)
}

func TestHub_ServeRoundTrip(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	received := make(chan ClientMessage, 1)
	hub.OnMessage(func(_ *Client, msg ClientMessage) { received <- msg })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(map[string]int{"timeLeft": 9})
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var payload map[string]int
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 9, payload["timeLeft"])

	require.NoError(t, conn.WriteMessage(gorillawebsocket.TextMessage, []byte(`{"action":"activity","kind":"tap"}`)))
	select {
	case msg := <-received:
		assert.Equal(t, "tap", msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("server did not receive client message")
	}
}
