package routes

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/jcalloway/nowapi/goodreads"
	"github.com/jcalloway/nowapi/spotify"
)

// ReadingProvider serves the current reading-list observation.
type ReadingProvider interface {
	Current(ctx context.Context) (*goodreads.Book, error)
}

// PlayingProvider serves the current playback observation.
type PlayingProvider interface {
	Current(ctx context.Context) (*spotify.Track, error)
}

type Server struct {
	Router  *chi.Mux
	Reading ReadingProvider // nil when the source is not configured
	Playing PlayingProvider
}

type ServerOptions struct {
	Reading ReadingProvider
	Playing PlayingProvider
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Reading: opts.Reading, Playing: opts.Playing}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Error writing health check response: %v", err)
		}
	})

	r.Get("/api/reading", s.handleReading)
	r.Get("/api/playing", s.handlePlaying)

	return s
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	if s.Reading == nil {
		s.respondError(w, http.StatusServiceUnavailable, "not_configured", "reading source not configured")
		return
	}
	book, err := s.Reading.Current(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("reading fetch failed with no cached entry")
		s.respondError(w, http.StatusBadGateway, "upstream_unavailable", "could not reach the reading-list source")
		return
	}
	s.respondJSON(w, book)
}

func (s *Server) handlePlaying(w http.ResponseWriter, r *http.Request) {
	if s.Playing == nil {
		s.respondError(w, http.StatusServiceUnavailable, "not_configured", "playback source not configured")
		return
	}
	track, err := s.Playing.Current(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("playback fetch failed with no cached entry")
		s.respondError(w, http.StatusBadGateway, "upstream_unavailable", "could not reach the playback source")
		return
	}
	s.respondJSON(w, track)
}

// respondJSON writes v as the response body; a typed nil encodes as null,
// which is the wire form of "nothing to report".
func (s *Server) respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := map[string]string{"error": code, "message": message}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing error response: %v", err)
	}
}
