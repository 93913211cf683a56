// ABOUTME: WebSocket transport for the chat relay using gorilla/websocket
// ABOUTME: One read loop and one writer goroutine per connection, with ping/pong eviction

package chat

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

// Default transport settings.
const (
	DefaultWriteTimeout    = 10 * time.Second
	DefaultMaxMessageBytes = 4096
)

// LeftSuffix is appended to a label to announce a departure.
const LeftSuffix = " left the chat"

// Options configures the websocket transport. Zero PingInterval disables
// keepalive pings, leaving idle peers connected until they close.
type Options struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	// AllowedOrigins limits the Origin header on upgrade. Empty or "*" allows any.
	AllowedOrigins []string
}

// Handler upgrades HTTP requests to websocket chat connections.
type Handler struct {
	registry *Registry
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler relaying through registry. Pass nil logger for default.
func NewHandler(registry *Registry, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}

	h := &Handler{
		registry: registry,
		opts:     opts,
		logger:   logger.With("component", "chat"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

// ServeConn upgrades the request and relays frames for the connection
// labelled label until the peer disconnects. It blocks for the lifetime of
// the connection.
func (h *Handler) ServeConn(w http.ResponseWriter, r *http.Request, label string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Debug("websocket upgrade failed", "label", label, "error", err)
		return
	}

	c := h.registry.Join(label)
	go h.writeLoop(ws, c)

	h.readLoop(ws, c)

	// Remove before closing so no broadcast targets a dead socket.
	if h.registry.Leave(c) {
		_ = ws.Close()
		h.registry.Broadcast(label + LeftSuffix)
		return
	}
	_ = ws.Close()
}

func (h *Handler) readLoop(ws *websocket.Conn, c *Conn) {
	ws.SetReadLimit(h.opts.MaxMessageBytes)

	keepalive := h.opts.PingInterval > 0 && h.opts.PongTimeout > 0
	extend := func() {
		if keepalive {
			_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		}
	}
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug("connection read ended", "label", c.label, "conn_id", c.id, "error", err)
			}
			return
		}
		extend()

		if msgType != websocket.TextMessage {
			continue
		}
		h.registry.Broadcast(c.label + ": " + string(data))
	}
}

// writeLoop is the only goroutine writing to ws. A write error closes the
// socket, which ends the read loop.
func (h *Handler) writeLoop(ws *websocket.Conn, c *Conn) {
	var ping <-chan time.Time
	if h.opts.PingInterval > 0 {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer ws.Close()

	for {
		select {
		case text := <-c.Frames():
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				h.logger.Debug("write failed, closing connection", "label", c.label, "conn_id", c.id, "error", err)
				return
			}
		case <-ping:
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
