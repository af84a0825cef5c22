// Package api exposes the action schema and the executor over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"music-action-service/internal/executor"
	"music-action-service/internal/playlist"
)

// PlaylistReader serves stored playlists; *playlist.Store implements it.
type PlaylistReader interface {
	Get(ctx context.Context, id string) (playlist.Playlist, error)
	List(ctx context.Context, owner string) ([]playlist.Playlist, error)
}

type Server struct {
	exec      *executor.Executor
	playlists PlaylistReader
	devices   http.Handler
	jwtSecret []byte
}

type Option func(*Server)

// WithPlaylists enables GET /playlists and GET /playlists/{id}.
func WithPlaylists(p PlaylistReader) Option {
	return func(s *Server) { s.playlists = p }
}

// WithDevices mounts the playback device websocket at /ws.
func WithDevices(h http.Handler) Option {
	return func(s *Server) { s.devices = h }
}

// WithJWTSecret requires an HS256 access token on every route except
// /health and /ws.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

func NewServer(exec *executor.Executor, opts ...Option) *Server {
	s := &Server{exec: exec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	if s.devices != nil {
		r.Method(http.MethodGet, "/ws", s.devices)
	}

	r.Group(func(r chi.Router) {
		if s.jwtSecret != nil {
			r.Use(jwtAuthMiddleware(s.jwtSecret))
		} else {
			r.Use(listenerHeaderMiddleware)
		}

		r.Get("/schema", s.handleSchema)
		r.Post("/filters/parse", s.handleParseFilter)

		r.Post("/actions", s.handleAction)
		r.Post("/actions/validate", s.handleValidateAction)

		r.Post("/programs", s.handleRunProgram)
		r.Post("/programs/validate", s.handleValidateProgram)

		if s.playlists != nil {
			r.Get("/playlists", s.handleListPlaylists)
			r.Get("/playlists/{id}", s.handleGetPlaylist)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "music-action-service",
	})
}
