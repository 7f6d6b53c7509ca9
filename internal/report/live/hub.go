// Package live pushes step-by-step exploration progress over WebSocket to any
// connected dashboard: a registered-clients map, a buffered broadcast
// channel, and a ping/pong read pump driving exploration-step events.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StepEvent is one {state, action, phase} progress update pushed during a run.
type StepEvent struct {
	Type      string    `json:"type"` // step_started, step_finished, violation, run_finished
	StateID   string    `json:"state_id,omitempty"`
	Action    string    `json:"action,omitempty"`
	Phase     string    `json:"phase,omitempty"` // pre_action, act, post_action
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub manages WebSocket connections and broadcasts StepEvents. Zero-value
// unusable; build with NewHub.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan StepEvent
	register  chan *websocket.Conn
	unregister chan *websocket.Conn
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewHub builds a Hub. Call Run in a goroutine before accepting connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan StepEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger.With("component", "live_report"),
	}
}

// Run drives the hub's registration/broadcast loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("live report hub starting")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				go h.send(conn, ev)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, ev StepEvent) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Debug("dropping live report client", "error", err)
		h.unregister <- conn
	}
}

// Publish queues ev for broadcast to every connected dashboard. Non-blocking;
// drops the event and logs a warning if the buffer is full rather than stalling
// the exploration loop, since a dashboard is observational, never load-bearing.
func (h *Hub) Publish(ev StepEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("live report buffer full, dropping step event", "type", ev.Type)
	}
}

// ServeHTTP upgrades the request to a WebSocket and keeps it alive with a
// ping/pong loop; clients are not expected to send data.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("live report upgrade failed", "error", err)
		return
	}
	h.register <- conn
	go h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

// Encode is a small helper for tests that want to assert on the wire format
// without standing up a real WebSocket connection.
func Encode(ev StepEvent) ([]byte, error) { return json.Marshal(ev) }
