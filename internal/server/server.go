// Package server exposes the health check and the socket endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/logger"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SocketHub serves websocket upgrades and can be drained on shutdown.
type SocketHub interface {
	http.Handler
	Close(ctx context.Context) error
	Connections() int
}

type Server struct {
	store Pinger
	hub   SocketHub
	http  *http.Server
}

func New(addr string, store Pinger, hub SocketHub) *Server {
	s := &Server{store: store, hub: hub}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+constants.HealthPath, s.handleHealth)
	mux.Handle("GET "+constants.SocketPath, s.hub)
	return mux
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := health{Status: "ok", Connections: s.hub.Connections()}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		logger.Warn("Health check failed", "error", err)
		body.Status = "unavailable"
		body.Error = "store unreachable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is cancelled, then drains sockets and stops.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Run(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	if ready != nil {
		ready(ln.Addr().String())
	}
	logger.Info("Server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	// Hijacked sockets are not tracked by http.Server.
	if err := s.hub.Close(shutdownCtx); err != nil {
		logger.Warn("Sockets did not drain in time", "error", err)
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
