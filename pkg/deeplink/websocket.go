package deeplink

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/telepath-dev/telepath"
)

// WebSocketHandler dispatches one event per text frame and answers each
// with a JSON Reply. Frames on one connection are handled in order.
type WebSocketHandler struct {
	d        *telepath.Dispatcher
	opts     *options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocketHandler creates a WebSocket endpoint for d.
func NewWebSocketHandler(d *telepath.Dispatcher, opts ...Option) *WebSocketHandler {
	return &WebSocketHandler{
		d:    d,
		opts: newOptions(opts),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and serves it until the peer closes.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	controller, err := h.opts.controller(r)
	if err != nil {
		h.opts.logger.Error("controller unavailable", zap.Error(err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(h.opts.maxBody)

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	ctx := r.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var reply Reply
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			reply = Reply{Error: "invalid request: " + err.Error()}
		} else if ev, err := req.Event(); err != nil {
			reply = Reply{Error: err.Error()}
		} else {
			reply, _ = run(ctx, h.d, ev, controller)
		}

		if err := conn.WriteJSON(reply); err != nil {
			h.opts.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// ClientCount returns the number of open connections.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close closes every open connection.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
		c.Close()
	}
}
