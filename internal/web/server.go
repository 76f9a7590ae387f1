// Package web exposes the unlock engine over HTTP: a JSON API for the
// companion app and a small HTML status page.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sweeney/lockbeam/internal/code"
	"github.com/sweeney/lockbeam/internal/player"
	"github.com/sweeney/lockbeam/internal/status"
)

// Controller is the engine surface the API drives.
type Controller interface {
	Generate(ctx context.Context) (code.Code, error)
	Transmit(ctx context.Context) (*player.Handle, error)
	CancelTransmission() bool
	Activity()
	Background()
}

// Server serves the control API and status page.
type Server struct {
	httpServer *http.Server
	controller Controller
	tracker    *status.Tracker
}

// New creates a Server around the given controller and tracker.
func New(addr string, controller Controller, tracker *status.Tracker) *Server {
	s := &Server{controller: controller, tracker: tracker}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/generate", s.handleGenerate)
	r.Post("/api/transmit", s.handleTransmit)
	r.Post("/api/transmit/cancel", s.handleCancel)
	r.Post("/api/activity", s.handleActivity)
	r.Post("/api/background", s.handleBackground)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the underlying router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.controller.Activity()
	c, err := s.controller.Generate(r.Context())
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{
		Code:      c.Value,
		ExpiresAt: c.ExpiresAt.UTC(),
	})
}

func (s *Server) handleTransmit(w http.ResponseWriter, r *http.Request) {
	s.controller.Activity()
	h, err := s.controller.Transmit(r.Context())
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, transmitResponse{
		TransmissionID: h.ID.String(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.controller.Activity()
	cancelled := s.controller.CancelTransmission()
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: cancelled})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	s.controller.Activity()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	s.controller.Background()
	w.WriteHeader(http.StatusNoContent)
}

// writeLifecycleError maps engine errors onto HTTP status codes.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var cooldown *code.CooldownError
	switch {
	case errors.As(err, &cooldown):
		writeError(w, http.StatusTooManyRequests, "cooldown active", cooldown.Remaining.Milliseconds())
	case errors.Is(err, code.ErrAlreadyActive):
		writeError(w, http.StatusConflict, "code already active", 0)
	case errors.Is(err, player.ErrBusy):
		writeError(w, http.StatusConflict, "transmission in progress", 0)
	case errors.Is(err, code.ErrExpired):
		writeError(w, http.StatusGone, "code expired", 0)
	case errors.Is(err, code.ErrExhausted):
		writeError(w, http.StatusForbidden, "attempts exhausted", 0)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", 0)
	}
}
