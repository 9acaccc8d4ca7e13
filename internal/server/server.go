package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quotesync/quote-sync-service/internal/config"
	"github.com/quotesync/quote-sync-service/internal/models"
	"github.com/quotesync/quote-sync-service/internal/syncer"
	"github.com/quotesync/quote-sync-service/internal/watermark"
)

// Server handles HTTP requests
type Server struct {
	config config.ServerConfig
	runner *syncer.Runner
	store  watermark.Store
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, runner *syncer.Runner, store watermark.Store) *Server {
	s := &Server{
		config: cfg,
		runner: runner,
		store:  store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sync", s.handleSync)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the runner snapshot plus the current watermark.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.runner.Status()
	mark, err := s.store.Get(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read watermark: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		models.Status
		Watermark int64 `json:"watermark"`
	}{Status: status, Watermark: mark})
}

// handleSync triggers a manual sync and waits for the coalesced run to
// finish. Internal cycle failures are reflected in the watermark, not here.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.runner.Sync(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("Sync interrupted: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "completed",
	})
}
