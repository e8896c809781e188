package httpx

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// client is one websocket subscriber. Writes are serialized by mu.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// hub pushes state updates to every connected websocket client.
type hub struct {
	clientsLock sync.RWMutex
	clients     map[*client]struct{}
	upgrader    websocket.Upgrader
	log         logr.Logger
}

func newHub(log logr.Logger) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// serve upgrades the request, sends the current state and then reads until
// the peer goes away. current is called with state held, the same lock
// broadcasters hold, so the first message is never older than a broadcast.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, state sync.Locker, current func() any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(err, "websocket upgrade", "remote", r.RemoteAddr)
		return
	}
	c := &client{conn: conn}
	h.log.V(1).Info("websocket connected", "remote", conn.RemoteAddr().String())

	state.Lock()
	c.mu.Lock()
	h.clientsLock.Lock()
	h.clients[c] = struct{}{}
	h.clientsLock.Unlock()
	msg, err := json.Marshal(current())
	state.Unlock()
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
	c.mu.Unlock()

	// Incoming messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *hub) remove(c *client) {
	h.clientsLock.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.clientsLock.Unlock()
	if ok {
		_ = c.conn.Close()
		h.log.V(1).Info("websocket disconnected", "remote", c.conn.RemoteAddr().String())
	}
}

// broadcast sends v as JSON to all clients, dropping those that fail.
// Callers hold the state lock passed to serve.
func (h *hub) broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error(err, "encode broadcast")
		return
	}

	h.clientsLock.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clientsLock.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.remove(c)
		}
	}
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.clientsLock.Lock()
	targets := h.clients
	h.clients = make(map[*client]struct{})
	h.clientsLock.Unlock()

	for c := range targets {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
		_ = c.conn.Close()
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}
