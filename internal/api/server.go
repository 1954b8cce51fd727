// Package api provides a read-only REST API reporting ping-pong progress and
// the responder child processes.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"pingpong/internal/output"
	"pingpong/internal/procmgr"
)

// StatusSource reports per-role progress.
type StatusSource interface {
	Snapshot() []output.Progress
}

// PeerSource reports tracked child processes.
type PeerSource interface {
	List() []procmgr.Info
	Get(pid int) (procmgr.Info, bool)
}

// Server provides REST endpoints for inspecting a running session.
type Server struct {
	status StatusSource
	peers  PeerSource
	addr   string
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Roles []output.Progress `json:"roles"`
	Total int               `json:"total"`
}

// ListResponse is returned by GET /peers.
type ListResponse struct {
	Processes []ProcessInfo `json:"processes"`
	Total     int           `json:"total"`
}

// ProcessInfo contains information about a responder child process.
type ProcessInfo struct {
	PID       int      `json:"pid"`
	Args      []string `json:"args"`
	StartedAt string   `json:"started_at"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a new API server bound to the given port on localhost. peers
// may be nil when the responder runs in-process.
func New(status StatusSource, peers PeerSource, port int) *Server {
	return &Server{
		status: status,
		peers:  peers,
		addr:   fmt.Sprintf("127.0.0.1:%d", port),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/peers", s.handlePeers)
	mux.HandleFunc("/peers/", s.handlePeerByID)
	return mux
}

// Start binds the address and serves the API in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	go func() {
		slog.Info("REST API server starting", "addr", s.addr)
		if err := http.Serve(ln, s.Handler()); err != nil {
			slog.Error("REST API server failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	roles := s.status.Snapshot()
	s.writeJSON(w, http.StatusOK, StatusResponse{Roles: roles, Total: len(roles)})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var procs []procmgr.Info
	if s.peers != nil {
		procs = s.peers.List()
	}

	response := ListResponse{
		Processes: make([]ProcessInfo, len(procs)),
		Total:     len(procs),
	}
	for i, p := range procs {
		response.Processes[i] = processInfo(p)
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePeerByID(w http.ResponseWriter, r *http.Request) {
	// Extract PID from URL path: /peers/12345
	path := strings.TrimPrefix(r.URL.Path, "/peers/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "PID required in URL path")
		return
	}

	pid, err := strconv.Atoi(path)
	if err != nil || pid <= 0 {
		s.writeError(w, http.StatusBadRequest, "Invalid PID format")
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.peers != nil {
		if p, ok := s.peers.Get(pid); ok {
			s.writeJSON(w, http.StatusOK, processInfo(p))
			return
		}
	}

	s.writeError(w, http.StatusNotFound, fmt.Sprintf("PID %d is not a tracked responder", pid))
}

func processInfo(p procmgr.Info) ProcessInfo {
	return ProcessInfo{
		PID:       p.PID,
		Args:      p.Args,
		StartedAt: p.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
