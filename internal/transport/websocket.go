// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"patchbay/internal/log"
)

// SpectrumPath is the endpoint clients connect to.
const SpectrumPath = "/spectrum"

const writeWait = time.Second

// client is one connected WebSocket peer.
type client struct {
	id   xid.ID
	conn *websocket.Conn
}

// WebSocketTransport broadcasts data as JSON to every connected client.
// Broadcasts closer together than the minimum send interval are dropped.
//
// Thread Safety:
//   - The client map and rate limiter are guarded by one mutex
//   - Send is safe for concurrent use; data is serialized before it returns
type WebSocketTransport struct {
	addr        string
	upgrader    websocket.Upgrader
	server      *http.Server
	minInterval time.Duration

	mu       sync.Mutex
	clients  map[*client]struct{}
	lastSend time.Time
	closed   bool

	readers sync.WaitGroup
}

// NewWebSocketTransport creates a transport that will listen on addr once
// ListenAndServe is called. Handler may be used instead to mount it on an
// existing server.
func NewWebSocketTransport(addr string, minInterval time.Duration) *WebSocketTransport {
	t := &WebSocketTransport{
		addr:        addr,
		minInterval: minInterval,
		clients:     make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualisers connect from any origin.
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SpectrumPath, t.handleWebSocket)
	t.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return t
}

// Handler returns the HTTP handler serving SpectrumPath.
func (t *WebSocketTransport) Handler() http.Handler {
	return t.server.Handler
}

// ListenAndServe serves until Close or Shutdown is called. It returns nil on
// a clean shutdown.
func (t *WebSocketTransport) ListenAndServe() error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	return t.Serve(ln)
}

// Serve accepts connections on ln until Close or Shutdown is called.
func (t *WebSocketTransport) Serve(ln net.Listener) error {
	log.Infof("transport: spectrum WebSocket listening on ws://%s%s", ln.Addr(), SpectrumPath)
	if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket upgrades the request and registers the client. A reader
// goroutine drains control frames and unregisters the client when the
// connection fails or closes.
func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("transport: upgrade error: %v", err)
		return
	}

	c := &client{id: xid.New(), conn: conn}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.clients[c] = struct{}{}
	total := len(t.clients)
	t.readers.Add(1)
	t.mu.Unlock()

	entry := log.WithField("client", c.id.String())
	entry.Infof("transport: client connected from %s, total: %d", r.RemoteAddr, total)

	go func() {
		defer t.readers.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		if total, ok := t.remove(c); ok {
			entry.Infof("transport: client disconnected, total: %d", total)
		}
	}()
}

// remove unregisters and closes c. It reports false if c was already gone.
func (t *WebSocketTransport) remove(c *client) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[c]; !ok {
		return len(t.clients), false
	}
	delete(t.clients, c)
	c.conn.Close()
	return len(t.clients), true
}

// Send broadcasts data to all connected clients with rate limiting.
//
// Rate Limiting:
//   - Enforces the minimum interval between broadcasts
//   - Drops frames that exceed the rate limit
//
// A client whose write fails is dropped.
func (t *WebSocketTransport) Send(data any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || len(t.clients) == 0 {
		return nil
	}
	now := time.Now()
	if !t.lastSend.IsZero() && now.Sub(t.lastSend) < t.minInterval {
		return nil // Skip this update
	}
	t.lastSend = now

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	deadline := now.Add(writeWait)
	for c := range t.clients {
		_ = c.conn.SetWriteDeadline(deadline)
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.WithField("client", c.id.String()).Warnf("transport: dropping client: %v", err)
			delete(t.clients, c)
			c.conn.Close()
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (t *WebSocketTransport) ClientCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// Shutdown stops the HTTP server gracefully, then closes every client.
func (t *WebSocketTransport) Shutdown(ctx context.Context) error {
	err := t.server.Shutdown(ctx)
	t.closeClients()
	return err
}

// Close performs an immediate shutdown of the server and every client and
// waits for the reader goroutines to exit. It is idempotent.
func (t *WebSocketTransport) Close() error {
	err := t.server.Close()
	t.closeClients()
	return err
}

func (t *WebSocketTransport) closeClients() {
	t.mu.Lock()
	t.closed = true
	for c := range t.clients {
		c.conn.Close()
		delete(t.clients, c)
	}
	t.mu.Unlock()
	t.readers.Wait()
}

// Ensure WebSocketTransport satisfies the interface.
var _ Transport = (*WebSocketTransport)(nil)
