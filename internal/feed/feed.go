// Package feed provides a real-time WebSocket feed of board changes.
//
// The feed broadcasts refresh completions, single-node updates, and board
// statistics to connected WebSocket clients, and serves a small JSON API for
// one-shot reads of the tree.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/planboard/planboard/internal/controller"
)

// MessageType defines the type of feed message
type MessageType string

const (
	// MessageTypeRefreshComplete indicates a full refresh replaced the
	// board snapshot
	MessageTypeRefreshComplete MessageType = "refresh_complete"

	// MessageTypeNodeUpdate indicates a single node changed
	MessageTypeNodeUpdate MessageType = "node_update"

	// MessageTypeStats indicates updated board statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a feed broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NodeUpdateData carries the repainted node
type NodeUpdateData struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Progress string `json:"progress,omitempty"`
}

// RefreshCompleteData summarizes a completed full refresh
type RefreshCompleteData struct {
	Items      int `json:"items"`
	Containers int `json:"containers"`
}

// StatsData carries board statistics
type StatsData struct {
	Items            int            `json:"items"`
	Containers       int            `json:"containers"`
	ByStatus         map[string]int `json:"by_status"`
	FullRefreshes    uint64         `json:"full_refreshes"`
	PartialRefreshes uint64         `json:"partial_refreshes"`
}

// nodeJSON is the wire form of one tree node for the JSON API.
type nodeJSON struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	Progress  string     `json:"progress,omitempty"`
	SpecPath  string     `json:"spec,omitempty"`
	DependsOn []string   `json:"depends_on,omitempty"`
	Children  []nodeJSON `json:"children,omitempty"`
}

// Server manages WebSocket connections and broadcasts feed messages. It
// subscribes to the controller and forwards every landed refresh.
type Server struct {
	addr     string
	ctrl     *controller.Controller
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds feed server configuration
type Config struct {
	// Port to listen on (default: 8422)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8422,
		Logger: log.Default(),
	}
}

// NewServer creates a new feed server over a running controller
func NewServer(ctrl *controller.Controller, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		ctrl:      ctrl,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server, the broadcast loop, and the controller
// subscription that feeds it
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/tree", s.handleTree)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go s.forwardNotices(s.ctrl.Subscribe())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Feed server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping feed server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Feed server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// forwardNotices translates controller notices into feed messages until the
// subscription or the server closes.
func (s *Server) forwardNotices(notices <-chan controller.Notice) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			s.Broadcast(s.messageFor(n))
		}
	}
}

func (s *Server) messageFor(n controller.Notice) Message {
	switch n.Kind {
	case controller.NoticeNode:
		data := NodeUpdateData{ID: n.ID}
		if v, ok := s.ctrl.NodeView(n.ID); ok {
			data.Label = v.Label
			data.Status = string(v.Status)
			data.Priority = v.Priority.String()
			data.Progress = v.Progress
		}
		raw, _ := json.Marshal(data)
		return Message{Type: MessageTypeNodeUpdate, Timestamp: n.At, Data: raw}
	default:
		st := s.ctrl.Stats()
		raw, _ := json.Marshal(RefreshCompleteData{
			Items:      st.Items,
			Containers: st.Containers,
		})
		return Message{Type: MessageTypeRefreshComplete, Timestamp: n.At, Data: raw}
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send to clients concurrently so one slow peer cannot
			// stall delivery to the others.
			var sends sync.WaitGroup
			for _, conn := range clients {
				sends.Add(1)
				go func(conn *websocket.Conn) {
					defer sends.Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					err := conn.Write(ctx, websocket.MessageText, data)
					cancel()

					if err != nil {
						s.logger.Printf("Failed to send to client: %v", err)
						s.removeClient(conn)
					}
				}(conn)
			}
			sends.Wait()
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Send current statistics so clients render without waiting for the
	// next refresh.
	welcome := s.statsMessage()
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

func (s *Server) statsMessage() Message {
	st := s.ctrl.Stats()
	byStatus := make(map[string]int, len(st.ByStatus))
	for status, n := range st.ByStatus {
		byStatus[string(status)] = n
	}
	raw, _ := json.Marshal(StatsData{
		Items:            st.Items,
		Containers:       st.Containers,
		ByStatus:         byStatus,
		FullRefreshes:    st.FullRefreshes,
		PartialRefreshes: st.PartialRefreshes,
	})
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: raw}
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// We don't process client messages, just keep connection alive
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleTree returns the full board tree as JSON
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var build func(views []controller.View) []nodeJSON
	build = func(views []controller.View) []nodeJSON {
		nodes := make([]nodeJSON, 0, len(views))
		for _, v := range views {
			n := nodeJSON{
				ID:        v.ID,
				Label:     v.Label,
				Type:      string(v.Type),
				Status:    string(v.Status),
				Priority:  v.Priority.String(),
				Progress:  v.Progress,
				SpecPath:  v.SpecPath,
				DependsOn: v.DependsOn,
			}
			if v.HasChildren {
				n.Children = build(s.ctrl.Children(v.ID))
			}
			nodes = append(nodes, n)
		}
		return nodes
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"roots": build(s.ctrl.RootNodes()),
	})
}

// handleStats returns current board statistics as JSON
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	msg := s.statsMessage()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(msg.Data)
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Planboard Feed</title>
</head>
<body>
    <h1>Planboard Feed Server</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Board tree: <a href="/api/tree">/api/tree</a></p>
    <p>Connect a WebSocket client to receive real-time board updates.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
