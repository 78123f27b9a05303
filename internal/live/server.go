// Package live serves a websocket feed of dataset changes and sync status
// to external UIs.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/engine"
)

// MessageType names a feed message.
type MessageType string

const (
	// MessageChanged tells clients to re-read the dataset.
	MessageChanged MessageType = "changed"
	// MessageStatus carries the current sync status.
	MessageStatus MessageType = "status"
)

// Message is one feed message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const writeTimeout = 5 * time.Second

// Server manages websocket clients and broadcasts messages to them.
type Server struct {
	status func() engine.Status
	logger *zap.Logger

	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	broadcast chan Message

	lastMu     sync.Mutex
	lastStatus engine.Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a Server reporting the status returned by status.
func NewServer(status func() engine.Status, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		status:     status,
		logger:     logger,
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan Message, 100),
		lastStatus: status(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler returns the HTTP routes of the feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// Run starts the broadcast loop. Start calls it; tests using Handler with
// httptest call it directly.
func (s *Server) Run() {
	s.wg.Add(1)
	go s.broadcastLoop()
}

// Start listens on addr and serves the feed.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Run()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("live feed listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("live feed stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes every client and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.clientsMu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		clients = append(clients, conn)
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()
	for _, conn := range clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shut down live feed: %w", err)
	}
	return nil
}

// Notify is a notifier listener. It broadcasts a status message when the sync
// status moved since the last call and a changed message otherwise.
func (s *Server) Notify() {
	current := s.status()

	s.lastMu.Lock()
	moved := current != s.lastStatus
	s.lastStatus = current
	s.lastMu.Unlock()

	if moved {
		s.Broadcast(statusMessage(current))
		return
	}
	s.Broadcast(Message{Type: MessageChanged})
}

// Broadcast queues msg for every client without blocking. Messages are
// dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case <-s.ctx.Done():
	case s.broadcast <- msg:
	default:
		s.logger.Warn("live feed queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("failed to marshal feed message", zap.Error(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				if err := s.write(conn, data); err != nil {
					s.logger.Debug("dropping feed client", zap.Error(err))
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// The first message is the current status, written before the client
	// joins the broadcast set so it always arrives first.
	data, _ := json.Marshal(statusMessage(s.status()))
	if err := s.write(conn, data); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("feed client connected", zap.Int("clients", count))

	s.readLoop(conn)
}

// readLoop discards client messages until the connection closes.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Debug("feed client disconnected", zap.Int("clients", count))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		engine.Status
		Clients int `json:"clients"`
	}{s.status(), s.ClientCount()})
}

func statusMessage(st engine.Status) Message {
	data, _ := json.Marshal(st)
	return Message{Type: MessageStatus, Timestamp: time.Now(), Data: data}
}
