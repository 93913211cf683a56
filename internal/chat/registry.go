// ABOUTME: In-memory registry of live chat connections with snapshot broadcast
// ABOUTME: Each connection owns a bounded outbound queue; slow peers drop frames

package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultSendBuffer is the outbound queue size used when none is configured.
const DefaultSendBuffer = 64

// Observer is notified of registry activity. Implemented by the metrics package.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameBroadcast(recipients int)
	FrameDropped()
}

// Conn is one registered chat connection.
type Conn struct {
	id    string
	label string

	frames    chan string
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the server-assigned connection id.
func (c *Conn) ID() string { return c.id }

// Label returns the client-supplied label used to prefix its messages.
func (c *Conn) Label() string { return c.label }

// Frames returns the outbound queue drained by the connection's writer.
func (c *Conn) Frames() <-chan string { return c.frames }

// Done is closed once the connection has left the registry.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) markClosed() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry holds the currently open connections in join order.
type Registry struct {
	mu     sync.Mutex
	conns  []*Conn
	closed bool
	buffer int
	obs    Observer
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSendBuffer sets the per-connection outbound queue size.
func WithSendBuffer(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithObserver registers an Observer for join, leave and broadcast events.
func WithObserver(obs Observer) RegistryOption {
	return func(r *Registry) { r.obs = obs }
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		buffer: DefaultSendBuffer,
		logger: logger.With("component", "chat"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join registers a new connection labelled label. After Close it returns a
// connection that is already done.
func (r *Registry) Join(label string) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		label:  label,
		frames: make(chan string, r.buffer),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.markClosed()
		return c
	}
	r.conns = append(r.conns, c)
	n := len(r.conns)
	r.mu.Unlock()

	if r.obs != nil {
		r.obs.ConnectionOpened()
	}
	r.logger.Debug("connection joined", "label", label, "conn_id", c.id, "active", n)
	return c
}

// Leave removes c from the registry and marks it done. It reports whether c
// was still registered, so only the first caller sees true.
func (r *Registry) Leave(c *Conn) bool {
	r.mu.Lock()
	idx := -1
	for i, existing := range r.conns {
		if existing == c {
			idx = i
			break
		}
	}
	if idx >= 0 {
		r.conns = append(r.conns[:idx], r.conns[idx+1:]...)
	}
	n := len(r.conns)
	r.mu.Unlock()

	c.markClosed()
	if idx < 0 {
		return false
	}

	if r.obs != nil {
		r.obs.ConnectionClosed()
	}
	r.logger.Debug("connection left", "label", c.label, "conn_id", c.id, "active", n)
	return true
}

// Broadcast enqueues text on every registered connection in join order.
// It never blocks: a peer whose queue is full misses this frame.
func (r *Registry) Broadcast(text string) {
	r.mu.Lock()
	targets := make([]*Conn, len(r.conns))
	copy(targets, r.conns)
	r.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		select {
		case <-c.done:
			continue
		default:
		}

		select {
		case c.frames <- text:
			delivered++
		default:
			if r.obs != nil {
				r.obs.FrameDropped()
			}
			r.logger.Debug("dropped frame for slow connection", "label", c.label, "conn_id", c.id)
		}
	}

	if r.obs != nil {
		r.obs.FrameBroadcast(delivered)
	}
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Labels returns the labels of open connections in join order.
func (r *Registry) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	labels := make([]string, len(r.conns))
	for i, c := range r.conns {
		labels[i] = c.label
	}
	return labels
}

// Close disconnects every connection and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.closed = true
	r.mu.Unlock()

	for _, c := range conns {
		c.markClosed()
		if r.obs != nil {
			r.obs.ConnectionClosed()
		}
	}
	r.logger.Debug("registry closed", "disconnected", len(conns))
}
