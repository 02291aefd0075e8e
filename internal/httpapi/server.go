// Package httpapi serves the read-only HTTP surface next to the WebSocket endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/park285/chess-rooms/internal/board"
	"github.com/park285/chess-rooms/internal/mirror"
	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/room"
	"go.uber.org/zap"
)

// Snapshots is the read side of the Redis mirror.
type Snapshots interface {
	Load(ctx context.Context, id string) (room.Snapshot, error)
	List(ctx context.Context) ([]room.Snapshot, error)
}

// BoardRenderer turns a FEN into PNG bytes.
type BoardRenderer interface {
	RenderFEN(ctx context.Context, fen string, opts board.Options) ([]byte, error)
}

type Server struct {
	router    *mux.Router
	snapshots Snapshots
	renderer  BoardRenderer
	timeout   time.Duration

	wsPath    string
	ws        http.Handler
	staticDir string
}

type Option func(*Server)

// WithSnapshots enables the /api/games endpoints; without it they answer 503.
func WithSnapshots(s Snapshots) Option { return func(srv *Server) { srv.snapshots = s } }

func WithRenderer(r BoardRenderer) Option { return func(srv *Server) { srv.renderer = r } }

// WithWebSocket mounts ws at path.
func WithWebSocket(path string, ws http.Handler) Option {
	return func(srv *Server) { srv.wsPath, srv.ws = path, ws }
}

// WithStaticDir serves files from dir at "/" behind every other route.
func WithStaticDir(dir string) Option {
	return func(srv *Server) { srv.staticDir = strings.TrimSpace(dir) }
}

func NewServer(opts ...Option) *Server {
	s := &Server{router: mux.NewRouter(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = board.NewRenderer()
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET", "HEAD")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}/board.png", s.handleBoardPNG).Methods("GET")

	if s.ws != nil && s.wsPath != "" {
		s.router.Handle(s.wsPath, s.ws)
	}
	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir))).Methods("GET", "HEAD")
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		obslog.L().Debug("http_encode_error", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		respondError(w, http.StatusServiceUnavailable, "snapshot mirror disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	games, err := s.snapshots.List(ctx)
	if err != nil {
		obslog.L().Warn("http_list_games_error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []room.Snapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"games": games, "count": len(games)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	opts := board.Options{Flip: strings.EqualFold(r.URL.Query().Get("orient"), "black")}
	data, err := s.renderer.RenderFEN(r.Context(), snap.FEN, opts)
	if err != nil {
		obslog.L().Warn("http_board_render_error", zap.String("game_id", snap.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to render board")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (room.Snapshot, bool) {
	if s.snapshots == nil {
		respondError(w, http.StatusServiceUnavailable, "snapshot mirror disabled")
		return room.Snapshot{}, false
	}
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing game id")
		return room.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	snap, err := s.snapshots.Load(ctx, id)
	switch {
	case errors.Is(err, mirror.ErrNotFound):
		respondError(w, http.StatusNotFound, "game not found")
		return room.Snapshot{}, false
	case err != nil:
		obslog.L().Warn("http_load_game_error", zap.String("game_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load game")
		return room.Snapshot{}, false
	}
	return snap, true
}
