// Package api provides the HTTP admin and observability surface.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ConnectionInfo is the API view of one connection.
type ConnectionInfo struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Direction    string    `json:"direction"`
	Handle       string    `json:"handle,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Capabilities string    `json:"capabilities"`
	Cause        string    `json:"cause,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConnectionProvider provides connection data for the API.
// Implemented by the sipline service.
type ConnectionProvider interface {
	ListConnections() []ConnectionInfo
	GetConnection(id string) (ConnectionInfo, bool)
}

// Dialer originates outbound calls for the API.
// Implemented by the sipline service.
type Dialer interface {
	DialOut(target, displayName string) (ConnectionInfo, error)
}

// Server provides the HTTP API for the connection service.
type Server struct {
	addr        string
	httpServer  *http.Server
	connections ConnectionProvider
	dialer      Dialer
	events      *EventLog
	startTime   time.Time
}

// NewServer creates a new API server. metricsHandler serves the
// Prometheus exposition endpoint, eventLog feeds the recent-events
// endpoint, and dialer backs the dial endpoint; all three may be nil.
func NewServer(addr string, connections ConnectionProvider, metricsHandler http.Handler, eventLog *EventLog, dialer Dialer) *Server {
	s := &Server{
		addr:        addr,
		connections: connections,
		dialer:      dialer,
		events:      eventLog,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/connections", s.handleConnections)
	mux.HandleFunc("/api/v1/connections/", s.handleConnectionByID)
	if eventLog != nil {
		mux.HandleFunc("/api/v1/events", s.handleEvents)
	}
	if dialer != nil {
		mux.HandleFunc("/api/v1/dial", s.handleDial)
	}
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("[API] Starting HTTP API server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[API] Server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime).Seconds()
	response := map[string]interface{}{
		"status": "ok",
		"uptime": int64(uptime),
	}
	s.writeJSON(w, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	infos := s.connections.ListConnections()

	byState := make(map[string]int)
	for _, info := range infos {
		byState[info.State]++
	}

	response := map[string]interface{}{
		"total_connections": len(infos),
		"by_state":          byState,
	}
	s.writeJSON(w, response)
}

// --- Connections ---

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.connections.ListConnections())
}

func (s *Server) handleConnectionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract ID from path: /api/v1/connections/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/connections/")
	if path == "" {
		http.Error(w, "Connection ID required", http.StatusBadRequest)
		return
	}

	id, err := url.PathUnescape(path)
	if err != nil {
		http.Error(w, "Invalid connection ID encoding", http.StatusBadRequest)
		return
	}

	info, exists := s.connections.GetConnection(id)
	if !exists {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, info)
}

// --- Dial ---

type dialRequest struct {
	Target      string `json:"target"`
	DisplayName string `json:"display_name,omitempty"`
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		http.Error(w, "Target required", http.StatusBadRequest)
		return
	}

	info, err := s.dialer.DialOut(req.Target, req.DisplayName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, info)
}

// --- Events ---

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.events.Recent())
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode JSON", "error", err)
	}
}
