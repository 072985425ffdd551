// Package api provides the WebSocket session service. Each connection owns
// one driver session: the client loads a style, streams references and
// clusters, triggers the bulk locale fetch, and requests built clusters.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/citekit/citekit/core/locale"
	"github.com/citekit/citekit/internal/library"
	"github.com/citekit/citekit/internal/logging"
	"github.com/citekit/citekit/internal/server"
)

// Config holds the session service configuration.
type Config struct {
	// Port is the TCP port to listen on.
	Port int
	// Fetcher supplies locale XML to every session.
	Fetcher locale.Fetcher
	// Library, when non-nil, is offered to sessions via the loadLibrary op.
	Library *library.Library
	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty allows all origins.
	AllowedOrigins []string
}

// Server is the WebSocket session service.
type Server struct {
	cfg     Config
	origins server.Origins
}

// NewServer creates a session service with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("api: a locale fetcher is required")
	}
	return &Server{
		cfg:     cfg,
		origins: server.Origins{Allowed: cfg.AllowedOrigins},
	}, nil
}

// Handler returns the service's HTTP handler with logging and security
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/session", s.handleSession)
	return logging.CombinedMiddleware(server.SecurityHeaders(mux))
}

// Start listens on the configured port and serves until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	logging.ServerStartup("websocket", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"backend": library.DriverType(),
	})
}
