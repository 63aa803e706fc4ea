package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Event is the frame pushed to a connected user.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
	userID   string
}

type message struct {
	key     string
	payload []byte
}

// Hub fans events out to the connections of one user. A user may hold
// several connections (tabs, devices).
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	publish    chan message
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]map[*Client]bool
}

func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan message, 256),
		done:       make(chan struct{}),
		clients:    map[string]map[*Client]bool{},
	}
}

func userKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

// Run serves registrations and publishes until ctx is cancelled. Once it
// returns, new connections are refused and exiting clients skip the hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for key, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, key)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			key := userKey(c.tenantID, c.userID)
			h.mu.Lock()
			if h.clients[key] == nil {
				h.clients[key] = map[*Client]bool{}
			}
			h.clients[key][c] = true
			h.mu.Unlock()
			slog.Debug("websocket client connected", "userId", c.userID)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.publish:
			h.mu.Lock()
			for c := range h.clients[m.key] {
				select {
				case c.send <- m.payload:
				default:
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	key := userKey(c.tenantID, c.userID)
	set, ok := h.clients[key]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, key)
	}
	slog.Debug("websocket client disconnected", "userId", c.userID)
}

// Publish queues an event for every connection of the user. It never blocks
// the caller; events are dropped when the queue is full.
func (h *Hub) Publish(tenantID, userID, eventType string, data any) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		slog.Warn("websocket event marshal failed", "err", err)
		return
	}
	select {
	case h.publish <- message{key: userKey(tenantID, userID), payload: payload}:
	default:
		slog.Warn("websocket publish queue full", "userId", userID)
	}
}

// Connected reports how many connections a user currently holds.
func (h *Hub) Connected(tenantID, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userKey(tenantID, userID)])
}

// Serve upgrades an already authenticated request.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), tenantID: tenantID, userID: userID}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "userId", c.userID, "err", err)
			}
			return
		}
	}
}
