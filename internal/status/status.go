// Package status exposes a running interview session to local tooling.
//
// The HTTP server answers liveness and readiness probes, reports the
// session snapshot on /status, and serves the Swagger UI. The gRPC server
// implements the standard grpc.health.v1 service.
//
//	@title			Sidekick Status API
//	@version		1.0
//	@description	Read-only view of a running interview session.
//	@BasePath		/
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/sidekick/internal/docs"
	"github.com/nadzzz/sidekick/internal/session"
)

// Source provides the session snapshot.
type Source interface {
	Snapshot() session.Snapshot
}

type probeResponse struct {
	Status string `json:"status"`
}

// Server is a lightweight HTTP server for probes and session status.
type Server struct {
	port   int
	source Source
	ready  atomic.Bool
	server *http.Server
}

// New creates a new status server.
func New(port int, source Source) *Server {
	return &Server{port: port, source: source}
}

// SetReady marks the session loop as running.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// ListenAndServe starts the HTTP server. It blocks until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until the context is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("status server listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.Serve(lis); err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// handleHealth answers the liveness probe.
//
//	@Summary		Liveness probe
//	@Description	Reports that the process is alive.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	status.probeResponse	"Process is alive"
//	@Router			/healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// handleReady answers the readiness probe.
//
//	@Summary		Readiness probe
//	@Description	Reports whether the interview loop is running.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	status.probeResponse	"Conversation loop running"
//	@Failure		503	{object}	status.probeResponse	"Not ready"
//	@Router			/readyz [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, probeResponse{Status: "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// handleStatus reports the session snapshot.
//
//	@Summary		Session status
//	@Description	Returns the current state of the interview session.
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.Snapshot	"Session snapshot"
//	@Router			/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
