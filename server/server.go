// Package server is the HTTP front of the assistant.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/blixt/calendar-assistant/calendar"
	"github.com/blixt/calendar-assistant/dispatch"
)

// Backends hands out the backend for a request. *session.Manager implements it.
type Backends interface {
	Backend() dispatch.Backend
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	backends   Backends
	log        zerolog.Logger
}

func New(dispatcher *dispatch.Dispatcher, backends Backends, logger zerolog.Logger) *Server {
	return &Server{dispatcher: dispatcher, backends: backends, log: logger}
}

// Handler returns the routes wrapped in logging, request id and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/ws", s.handleWebSocket)
	mux.HandleFunc("GET /calendar/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	h = requestID(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Handled request")
	})(h)
	h = hlog.NewHandler(s.log)(h)
	return cors.AllowAll().Handler(h)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Server running")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, err := s.dispatcher.Run(r.Context(), s.backends.Backend(), req.Message, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error in chat endpoint")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	timeMin := r.URL.Query().Get("timeMin")
	timeMax := r.URL.Query().Get("timeMax")
	if timeMin == "" || timeMax == "" {
		writeError(w, http.StatusBadRequest, "timeMin and timeMax are required query parameters")
		return
	}

	backend := s.backends.Backend()
	if backend.Calendar == nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch calendar events")
		return
	}
	events, err := backend.Calendar.ListEvents(r.Context(), calendar.ListOptions{
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		MaxResults: calendar.DefaultMaxResults,
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error fetching calendar events")
		writeError(w, http.StatusInternalServerError, "Failed to fetch calendar events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		log := zerolog.Ctx(r.Context())
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("requestId", id)
		})
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
