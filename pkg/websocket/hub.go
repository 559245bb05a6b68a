// Package websocket pushes kiosk events to connected screens and relays their
// interaction signals back to the server.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ClientMessage is an inbound frame from a screen.
type ClientMessage struct {
	Action string `json:"action"`
	Kind   string `json:"kind,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	ID   string
	Send chan []byte
	conn Conn
}

func NewClient(conn Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 256),
		conn: conn,
	}
}

// Hub tracks connected screens. All operations are safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	all       map[*Client]struct{}
	onMessage func(*Client, ClientMessage)
	logger    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		all:    make(map[*Client]struct{}),
		logger: logger,
	}
}

// OnMessage sets the callback for inbound client frames.
func (h *Hub) OnMessage(fn func(*Client, ClientMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = fn
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister removes client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	delete(h.all, client)
	close(client.Send)
}

// Broadcast marshals v and queues it for every client. Slow clients are skipped.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket: failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client", client.ID).Msg("websocket: client buffer full, dropping event")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// Dispatch routes an inbound frame to the registered callback.
func (h *Hub) Dispatch(client *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	h.mu.RLock()
	fn := h.onMessage
	h.mu.RUnlock()
	if fn != nil {
		fn(client, msg)
	}
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve upgrades the request, registers the client and runs its pumps until the peer disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(ws)
	h.Register(client)
	h.logger.Debug().Str("client", client.ID).Msg("websocket: client connected")

	go h.writePump(client)
	h.readPump(client)
	return nil
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.Unregister(client)
		client.conn.Close()
		h.logger.Debug().Str("client", client.ID).Msg("websocket: client disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		h.Dispatch(client, message)
	}
}

func (h *Hub) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
