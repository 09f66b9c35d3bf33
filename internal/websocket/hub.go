// Package websocket pushes live-reload notifications to browser pages.
//
// A single hub goroutine owns the client set: it registers and removes
// clients and fans broadcasts out to them. Each client has a writer
// goroutine; the read side only runs the close handshake.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/h4x3rotab/repoview/internal/logging"
)

// MessageTypeReload tells a page to reload itself.
const MessageTypeReload = "reload"

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// Message is the JSON payload sent to clients.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected pages and broadcasts messages to them.
type Hub struct {
	// clients is written only by the hub goroutine.
	clients map[*websocket.Conn]*client
	mu      sync.RWMutex

	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte

	originPatterns []string
	onCount        func(int)
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns allows cross-origin pages whose host matches one of
// the patterns. Without it only same-host pages may connect.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.originPatterns = append(h.originPatterns, patterns...)
	}
}

// WithClientCountHook calls fn with the new client count after every
// connect and disconnect. fn runs on the hub goroutine and must not block.
func WithClientCountHook(fn func(int)) Option {
	return func(h *Hub) {
		h.onCount = fn
	}
}

// NewHub starts a hub. Call Shutdown to stop it.
func NewHub(logger logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 32),
		unregister: make(chan *websocket.Conn, 32),
		broadcast:  make(chan []byte, 64),
		logger:     logger.WithComponent("websocket"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.run()

	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the error response.
		h.logger.Debug(r.Context(), "websocket upgrade rejected", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast queues msg for every connected client. It never blocks; the
// message is dropped when the queue is full or the hub is stopped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "failed to encode broadcast message")
		return
	}

	select {
	case <-h.ctx.Done():
	case h.broadcast <- data:
	default:
		h.logger.Warn(h.ctx, nil, "broadcast queue full, dropping message", "type", msg.Type)
	}
}

// BroadcastReload asks every page to reload.
func (h *Hub) BroadcastReload(paths ...string) {
	h.Broadcast(Message{Type: MessageTypeReload, Paths: paths})
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown disconnects every client and stops the hub. It waits for the hub
// goroutine until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)
		h.cancel()
	})

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(h.ctx, "client connected", "clients", n)
			h.countChanged(n)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*websocket.Conn
			for conn, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				h.remove(conn)
			}

		case <-h.ctx.Done():
			h.mu.Lock()
			for conn, c := range h.clients {
				close(c.send)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			h.countChanged(0)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug(h.ctx, "client disconnected", "clients", n)
		h.countChanged(n)
	}
}

func (h *Hub) countChanged(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// writeLoop owns all writes to the connection and closes it on exit.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	status, reason := websocket.StatusNormalClosure, ""
	defer func() {
		_ = c.conn.Close(status, reason)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				status = websocket.StatusGoingAway
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(h.ctx, "websocket write failed", "error", err)
				h.drop(c.conn)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				h.drop(c.conn)
				return
			}
		}
	}
}

// readLoop discards client data and waits for the peer to go away.
func (h *Hub) readLoop(c *client) {
	<-c.conn.CloseRead(h.ctx).Done()
	h.drop(c.conn)
}

func (h *Hub) drop(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}
