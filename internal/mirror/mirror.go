// Package mirror serves the console view to remote displays: a WebSocket
// feed of full view snapshots, a JSON snapshot endpoint and Prometheus
// metrics. It is read-only; operator actions stay on the console.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/streaming"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sendChSize = 16
	writeWait  = 10 * time.Second
)

var upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // displays run on other hosts of the ground station LAN
	},
}

// Server broadcasts store changes to WebSocket clients.
type Server struct {
	store  *view.Store
	logger *slog.Logger
	seq    atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client owns one connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// send queues data. A client too slow to take a snapshot only misses
// intermediate ones; the next snapshot carries the whole view again.
func (c *client) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(logger *slog.Logger) {
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				logger.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

// New creates a server for store.
func New(store *view.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   store,
		logger:  logger.With("component", "mirror"),
		clients: make(map[*client]struct{}),
	}
}

// Handler routes /ws, /api/view and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/view", s.handleView)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Clients returns the number of connected displays.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) snapshot() ([]byte, error) {
	regions := make(map[string]any)
	for r, v := range s.store.Snapshot() {
		regions[string(r)] = v
	}
	return streaming.NewSnapshot(streaming.SnapshotPayload{
		Seq:     s.seq.Add(1),
		Time:    time.Now().UTC(),
		Regions: regions,
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	regions := make(map[string]any)
	for reg, v := range s.store.Snapshot() {
		regions[string(reg)] = v
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(regions); err != nil {
		s.logger.Warn("Encoding view failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, sendCh: make(chan []byte, sendChSize), done: make(chan struct{})}

	if data, err := s.snapshot(); err == nil {
		c.send(data)
	} else {
		s.logger.Error("Encoding snapshot failed", "error", err)
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("WebSocket client connected", "remote", r.RemoteAddr)

	go c.writeLoop(s.logger)
	s.readLoop(c)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	s.logger.Debug("WebSocket client disconnected", "remote", r.RemoteAddr)
}

// readLoop answers pings until the client goes away.
func (s *Server) readLoop(c *client) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Debug("Ignoring malformed client message", "raw", string(message))
			continue
		}
		if env.Type == streaming.TypePing {
			data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: streaming.TypePing})
			c.send(data)
		}
	}
}

// Broadcast sends the current snapshot to every client.
func (s *Server) Broadcast() {
	data, err := s.snapshot()
	if err != nil {
		s.logger.Error("Encoding snapshot failed", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.send(data) {
			s.logger.Debug("Client send queue full, skipping snapshot")
		}
	}
}

// Start subscribes to the store and broadcasts a snapshot after every
// change until ctx is done. Changes that arrive together are coalesced
// into one snapshot.
func (s *Server) Start(ctx context.Context) {
	changes, unsubscribe := s.store.Subscribe(64)
	go s.broadcastLoop(ctx, changes, unsubscribe)
}

func (s *Server) broadcastLoop(ctx context.Context, changes <-chan view.Region, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case <-changes:
				default:
					break drain
				}
			}
			s.Broadcast()
		}
	}
}

// ListenAndServe serves Handler on addr and runs the broadcaster until ctx
// is cancelled, then shuts down and disconnects every client.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.Start(ctx)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Mirror listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
