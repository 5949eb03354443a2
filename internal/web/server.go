package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stackrush/server/internal/matchmaking"
	"github.com/stackrush/server/internal/room"
	"github.com/stackrush/server/internal/settlement"
	"github.com/stackrush/server/internal/store"
)

// Server is the thin HTTP boundary over the coordinator core. Handlers only
// decode input, call into the core and translate errors; every guarantee
// lives below this layer.
type Server struct {
	router      *chi.Mux
	matchmaking *matchmaking.Engine
	rooms       *room.Manager
	settlement  *settlement.Service
	store       store.Store
	log         *logrus.Logger

	seasonID    string
	searchRange int
}

// Config holds server configuration.
type Config struct {
	SeasonID    string
	SearchRange int
}

// NewServer creates the HTTP server.
func NewServer(
	mm *matchmaking.Engine,
	rooms *room.Manager,
	settle *settlement.Service,
	st store.Store,
	log *logrus.Logger,
	cfg Config,
) *Server {
	if cfg.SearchRange <= 0 {
		cfg.SearchRange = matchmaking.DefaultSearchRange
	}
	s := &Server{
		router:      chi.NewRouter(),
		matchmaking: mm,
		rooms:       rooms,
		settlement:  settle,
		store:       st,
		log:         log,
		seasonID:    cfg.SeasonID,
		searchRange: cfg.SearchRange,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/queue/join", s.handleJoinQueue)
		r.Post("/queue/find", s.handleFindMatch)
		r.Post("/queue/leave", s.handleLeaveQueue)

		r.Post("/rooms", s.handleCreateRoom)
		r.Get("/rooms/{roomID}", s.handleGetRoom)
		r.Post("/rooms/{roomID}/join", s.handleJoinRoom)
		r.Post("/rooms/{roomID}/ready", s.handleMarkReady)
		r.Post("/rooms/{roomID}/start", s.handleStartRoom)
		r.Post("/rooms/{roomID}/leave", s.handleLeaveRoom)

		r.Post("/matches/settle", s.handleSettleMatch)
		r.Get("/players/{playerID}/rating", s.handleGetRating)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps core errors onto HTTP statuses: absence is 404, invariant
// violations are 409 with a reason code, anything else is a retryable 503.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "room_not_found"})
	case errors.Is(err, room.ErrRoomFull):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "room_full"})
	case errors.Is(err, room.ErrRoomStarted):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "room_started"})
	case errors.Is(err, room.ErrAlreadyJoined):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_joined"})
	case errors.Is(err, room.ErrNotInRoom):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "not_in_room"})
	case errors.Is(err, room.ErrNotHost):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "not_host"})
	case errors.Is(err, room.ErrPlayersNotReady):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "players_not_ready"})
	case errors.Is(err, settlement.ErrInvalidOutcome):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_outcome"})
	default:
		s.log.WithError(err).Warn("request failed on a store error")
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary failure, retry", Code: "retry"})
	}
}
