// Package api exposes the orchestrator state over HTTP: JSON endpoints for
// workspaces and benchmark sessions, an SSE stream, and a WebSocket event
// feed for dashboards that want push updates.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/benchwright/benchwright/internal/bench"
	"github.com/benchwright/benchwright/internal/registry"
)

// Server is the HTTP API server
type Server struct {
	registry *registry.Registry
	bench    *bench.Controller
	addr     string
	mux      *http.ServeMux
	sseHub   *SSEHub
	wsHub    *WSHub
}

// NewServer creates a new API server
func NewServer(reg *registry.Registry, ctrl *bench.Controller, addr string) *Server {
	s := &Server{
		registry: reg,
		bench:    ctrl,
		addr:     addr,
		mux:      http.NewServeMux(),
		sseHub:   NewSSEHub(),
		wsHub:    NewWSHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/workspaces", s.listWorkspacesHandler())
	s.mux.HandleFunc("/api/workspaces/", s.getWorkspaceHandler())
	s.mux.HandleFunc("/api/sessions", s.listSessionsHandler())
	s.mux.HandleFunc("/api/sessions/", s.getSessionHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
}

// Handler returns the server's HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.sseHub.Run()
	return http.ListenAndServe(s.addr, s.mux)
}

// Broadcast sends an event to all SSE and WebSocket clients
func (s *Server) Broadcast(event Event) {
	s.sseHub.Broadcast(event)
	s.wsHub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
