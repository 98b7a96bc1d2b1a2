// Package ws streams chat activity to connected frontends over WebSocket.
// A client subscribes to one user's events; nothing is broadcast globally.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub tracks WebSocket subscriptions keyed by user ID and delivers each
// user's chat events only to that user's connections.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*client]struct{})}
}

// HandleWS upgrades the connection and subscribes it to the user named in
// the user_id query parameter. A client only ever sees its own user's
// events.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{ws: conn, cancel: cancel}
	h.subscribe(userID, c)
	slog.Info("websocket subscribed", "user_id", userID, "remote", r.RemoteAddr)

	// Read loop: consumes pings and detects the disconnect.
	go func() {
		defer func() {
			h.unsubscribe(userID, c)
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Notify delivers a typed event to every connection subscribed to the user.
// Delivery is best effort; a failed write drops that connection.
func (h *Hub) Notify(ctx context.Context, userID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	msg, err := json.Marshal(Message{Type: eventType, Payload: data})
	if err != nil {
		slog.Error("marshal ws envelope", "type", eventType, "error", err)
		return
	}

	for _, c := range h.subscribers(userID) {
		if err := c.ws.Write(ctx, websocket.MessageText, msg); err != nil {
			slog.Debug("websocket write failed", "user_id", userID, "error", err)
			go h.unsubscribe(userID, c)
		}
	}
}

func (h *Hub) subscribers(userID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*client, 0, len(h.subs[userID]))
	for c := range h.subs[userID] {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) subscribe(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*client]struct{})
	}
	h.subs[userID][c] = struct{}{}
}

func (h *Hub) unsubscribe(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[userID]
	if _, ok := set[c]; !ok {
		return
	}
	c.cancel()
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, userID)
	}
	slog.Info("websocket unsubscribed", "user_id", userID)
}

// ConnectionCount returns the number of active connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
