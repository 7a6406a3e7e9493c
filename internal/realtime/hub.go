package realtime

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/pkg/metrics"
)

const (
	sendBufferSize = 16
	connDeadline   = 5 * time.Minute
)

// Event represents a payload delivered to connected console subscribers.
type Event struct {
	Event          string               `json:"event"`
	Notification   *notify.Notification `json:"notification,omitempty"`
	Alert          *notify.Alert        `json:"alert,omitempty"`
	NotificationID string               `json:"notification_id,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
	keys []string
}

// Hub fans notification and alert events out to connected operator consoles.
// Clients are indexed by the same addressing tokens the dispatcher uses: a
// user id, "role:<role>" and the broadcast token.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	// deadline is the idle cutoff; any read or write traffic pushes it out.
	deadline time.Duration
}

// NewHub constructs a delivery hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]map[*client]struct{}),
		deadline: connDeadline,
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the
// subscriber under their user id, role token and the broadcast token.
func (h *Hub) Serve(userID, role string, w http.ResponseWriter, r *http.Request) {
	keys := []string{notify.BroadcastKey}
	if userID != "" {
		keys = append(keys, userID)
	}
	if role != "" {
		keys = append(keys, notify.RoleKey(role))
	}

	server := websocket.Server{
		Handshake: func(config *websocket.Config, req *http.Request) error {
			config.Protocol = append(config.Protocol, "json")
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			_ = conn.SetDeadline(time.Now().Add(h.deadline))
			cl := &client{
				conn: conn,
				send: make(chan Event, sendBufferSize),
				keys: keys,
			}

			h.addClient(cl)
			defer h.removeClient(cl)

			go h.writeLoop(cl)
			h.readLoop(cl)
		},
	}

	server.ServeHTTP(w, r)
}

// Attach forwards every notification the system fans out to the matching
// console clients, returning the unsubscribe handle.
func (h *Hub) Attach(system *notify.System) func() {
	return system.Subscribe(notify.BroadcastKey, func(n *notify.Notification) {
		h.Deliver(n)
	})
}

// Deliver pushes the notification to clients subscribed under its recipient
// id, its role token, or the broadcast token. A client matching several keys
// receives the event once.
func (h *Hub) Deliver(n *notify.Notification) {
	if n == nil {
		return
	}

	keys := []string{notify.BroadcastKey}
	if n.RecipientID != "" {
		keys = append(keys, n.RecipientID)
	}
	if n.RecipientRole != "" {
		keys = append(keys, notify.RoleKey(n.RecipientRole))
	}

	event := Event{Event: "notification", Notification: n}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*client]struct{})
	for _, key := range keys {
		for cl := range h.clients[key] {
			if _, dup := seen[cl]; dup {
				continue
			}
			seen[cl] = struct{}{}
			h.enqueue(cl, event)
		}
	}
}

// Subscribers reports how many clients are registered under the key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key])
}

// Broadcast delivers an event to every subscriber registered under the key.
func (h *Hub) Broadcast(key string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients[key] {
		h.enqueue(cl, event)
	}
}

// Raise implements notify.AlertSink: elevated notifications surface as alert
// events on the recipient's consoles. Returns false when nobody is listening
// so the presentation bridge can degrade silently.
func (h *Hub) Raise(recipientKey string, alert notify.Alert) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients[recipientKey]
	if len(targets) == 0 {
		return false
	}

	event := Event{Event: "alert", Alert: &alert}
	for cl := range targets {
		h.enqueue(cl, event)
	}
	return true
}

func (h *Hub) enqueue(cl *client, event Event) {
	select {
	case cl.send <- event:
	default:
		// Drop if buffer full to avoid blocking all clients.
	}
}

func (h *Hub) addClient(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range cl.keys {
		if h.clients[key] == nil {
			h.clients[key] = make(map[*client]struct{})
		}
		h.clients[key][cl] = struct{}{}
	}
	metrics.HubClients.Inc()
}

func (h *Hub) removeClient(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range cl.keys {
		if clients := h.clients[key]; clients != nil {
			delete(clients, cl)
			if len(clients) == 0 {
				delete(h.clients, key)
			}
		}
	}
	close(cl.send)
	_ = cl.conn.Close()
	metrics.HubClients.Dec()
}

func (h *Hub) writeLoop(cl *client) {
	for event := range cl.send {
		_ = cl.conn.SetDeadline(time.Now().Add(h.deadline))
		if err := websocket.JSON.Send(cl.conn, event); err != nil {
			break
		}
	}
}

func (h *Hub) readLoop(cl *client) {
	defer cl.conn.Close()

	for {
		var payload any
		if err := websocket.JSON.Receive(cl.conn, &payload); err != nil {
			break
		}
		// Inbound traffic proves the console is alive.
		_ = cl.conn.SetDeadline(time.Now().Add(h.deadline))
	}
}
