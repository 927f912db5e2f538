package metrics

import (
	"context"
	"net/http"
	"time"
)

// Server provides the HTTP observability endpoints: Prometheus
// metrics, health, readiness and liveness.
type Server struct {
	mux *http.ServeMux
	srv *http.Server
}

// NewServer creates the observability HTTP server
func NewServer() *Server {
	mux := http.NewServeMux()
	s := &Server{mux: mux}

	// Register endpoints
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	mux.HandleFunc("/live", LivenessHandler())

	return s
}

// Start serves on addr until Shutdown. It blocks like
// http.Server.ListenAndServe and returns its error.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains inflight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (s *Server) GetHandler() http.Handler {
	return s.mux
}
