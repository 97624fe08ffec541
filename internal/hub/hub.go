// Package hub mirrors a terminal to websocket clients and forwards their
// keystrokes and window size changes to the shell.
package hub

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/termcore/internal/parser"
)

const defaultBatchInterval = 50 * time.Millisecond

// Input is the shell side of the hub, normally a *pty.Session.
type Input interface {
	Send(data []byte) error
	Resize(cols, rows uint16) error
}

type Option func(*Hub)

// WithSnapshot sets the source of the batch sent to a client when it
// connects, normally the scrollback's Tokens.
func WithSnapshot(fn func() parser.Batch) Option {
	return func(h *Hub) { h.snapshot = fn }
}

func WithBatchInterval(d time.Duration) Option {
	return func(h *Hub) { h.interval = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// Hub fans terminal output out to websocket clients. It implements the
// terminal observer interface through Batch and Clear.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	input      Input
	snapshot   func() parser.Batch
	token      string
	interval   time.Duration
	log        *slog.Logger
	mu         sync.RWMutex

	rateLimiter *RateLimiter
	running     atomic.Bool
}

// New creates a hub. An empty token disables the ?token= check.
func New(token string, input Input, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		input:      input,
		token:      token,
		interval:   defaultBatchInterval,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "hub")
	h.rateLimiter = NewRateLimiter(h.interval, h.sendBatch)
	return h
}

func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.rateLimiter.FlushAll()
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			if initial := h.snapshotMessage(); initial != nil {
				client.send <- initial
			}
			go client.writePump(ctx)
			go client.readPump(ctx)
			h.log.Info("client connected", "client", client.id, "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Info("client disconnected", "client", client.id, "total", h.ClientCount())

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.log.Warn("client send buffer full, dropping message", "client", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept error", "error", err)
		return
	}

	client := newClient(conn, h)
	select {
	case h.register <- client:
	default:
		h.log.Warn("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// Batch queues output for all clients. Batches arriving close together are
// merged into one message.
func (h *Hub) Batch(batch parser.Batch) {
	h.rateLimiter.Add(batch)
}

// Clear tells clients to drop what they show. Output added before the clear
// is sent first.
func (h *Hub) Clear() {
	h.rateLimiter.Barrier(func() {
		h.sendMessage(ClearMessage{Type: TypeClear})
	})
}

func (h *Hub) FlushPendingOutput() {
	h.rateLimiter.FlushAll()
}

func (h *Hub) sendBatch(batch parser.Batch) {
	h.sendMessage(BatchMessage{Type: TypeBatch, Tokens: batch})
}

func (h *Hub) sendMessage(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("error marshaling message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) snapshotMessage() []byte {
	if h.snapshot == nil {
		return nil
	}
	tokens := h.snapshot()
	if len(tokens) == 0 {
		return nil
	}
	data, err := json.Marshal(BatchMessage{Type: TypeBatch, Tokens: tokens})
	if err != nil {
		h.log.Error("error marshaling snapshot", "error", err)
		return nil
	}
	return data
}

func (h *Hub) SendError(client *Client, message string) {
	data, err := json.Marshal(ErrorMessage{Type: TypeError, Message: message})
	if err != nil {
		h.log.Error("error marshaling error message", "error", err)
		return
	}
	// Run closes send channels under the write lock.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleInput(c *Client, data []byte) {
	if h.input == nil {
		return
	}
	if err := h.input.Send(data); err != nil {
		h.log.Warn("forwarding input failed", "client", c.id, "error", err)
		h.SendError(c, err.Error())
	}
}

func (h *Hub) handleResize(c *Client, cols, rows uint16) {
	if h.input == nil {
		return
	}
	if err := h.input.Resize(cols, rows); err != nil {
		h.log.Warn("resize failed", "client", c.id, "error", err)
		h.SendError(c, err.Error())
	}
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.running.Load() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		h.log.Warn("unregister channel full, forcing close", "client", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
