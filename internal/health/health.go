// Package health serves the health and diagnostics endpoints of a saga
// repository process.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/sagastore/pkg/saga"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober describes a repository's configuration.
type Prober interface {
	Probe() saga.ProbeResult
}

// Server provides HTTP health check endpoints:
//
//	GET /healthz  store connectivity
//	GET /probe    repository diagnostics
type Server struct {
	addr     string
	store    Pinger
	repo     Prober
	log      saga.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a health server listening on addr once started.
func NewServer(addr string, store Pinger, repo Prober, log saga.Logger) *Server {
	if log == nil {
		log = saga.NopLogger{}
	}
	return &Server{
		addr:  addr,
		store: store,
		repo:  repo,
		log:   log,
	}
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthCheckHandler)
	mux.HandleFunc("/probe", s.probeHandler)
	return mux
}

// Start binds the listen address and serves in the background.
// Returns an error if the address cannot be bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("health server error", "error", err)
		}
	}()

	s.log.Info("health server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Store   string `json:"store,omitempty"`
	Error   string `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the store is reachable, 503 Service Unavailable otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "healthy",
		Backend: s.repo.Probe().Persistence,
		Store:   "connected",
	}
	status := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Store = "disconnected"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// probeHandler handles GET /probe requests.
func (s *Server) probeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.repo.Probe())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
