package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps
// ============================================================================
//
// Fans session snapshots out to UI clients:
//   - A Hub tracks connected WebSocket clients.
//   - Per-client write pumps so one slow client doesn't block others.
//   - Slow clients are disconnected when their send buffer fills.
//
// Messages are JSON text frames with an envelope: {type, ts, data}.
// The initial message on connect is "state_init" with the latest snapshot.
// ============================================================================

// envelope is the wire format for state websocket messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// Hub tracks state websocket clients and the latest session snapshot.
type Hub struct {
	logger  *slog.Logger
	sendBuf int

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	latest  SessionSnapshot
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with the given per-client outbound queue size.
func NewHub(sendBuf int, logger *slog.Logger) *Hub {
	if sendBuf <= 0 {
		sendBuf = 16
	}
	return &Hub{
		logger:  logger,
		sendBuf: sendBuf,
		clients: make(map[*wsClient]struct{}),
	}
}

// Latest returns the most recently broadcast snapshot.
func (h *Hub) Latest() SessionSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// BroadcastState records snap as the latest snapshot and fans it out.
func (h *Hub) BroadcastState(snap SessionSnapshot) {
	now := time.Now()
	frame, err := json.Marshal(envelope{Type: "state", Ts: &now, Data: snap})
	if err != nil {
		h.logger.Error("marshal state broadcast", "error", err)
		return
	}

	h.mu.Lock()
	h.latest = snap
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow client: drop it rather than stall the daemon.
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow state client")
		}
	}
	h.mu.Unlock()
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local control surface; the daemon binds to localhost.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request into a state websocket client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, h.sendBuf),
	}

	// Initial snapshot so new clients render immediately.
	now := time.Now()
	init, err := json.Marshal(envelope{Type: "state_init", Ts: &now, Data: h.Latest()})
	if err == nil {
		c.send <- init
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send queue until it closes.
func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump discards inbound frames (the state socket is one-way) and
// detects disconnects.
func (h *Hub) readPump(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
