package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stackrush/server/internal/settlement"
	"github.com/stackrush/server/internal/state"
)

type queueRequest struct {
	PlayerID string `json:"player_id"`
	Rating   int    `json:"rating"`
}

func (s *Server) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id and rating required", http.StatusBadRequest)
		return
	}

	if err := s.matchmaking.Enqueue(r.Context(), req.PlayerID, req.Rating); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type findMatchRequest struct {
	PlayerID string `json:"player_id"`
	Rating   int    `json:"rating"`
	Range    int    `json:"range,omitempty"`
}

type pairingResponse struct {
	OpponentID     string      `json:"opponent_id"`
	OpponentRating int         `json:"opponent_rating"`
	Room           *state.Room `json:"room"`
}

func (s *Server) handleFindMatch(w http.ResponseWriter, r *http.Request) {
	var req findMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id and rating required", http.StatusBadRequest)
		return
	}
	searchRange := req.Range
	if searchRange <= 0 {
		searchRange = s.searchRange
	}

	pairing, err := s.matchmaking.FindMatch(r.Context(), req.PlayerID, req.Rating, searchRange)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if pairing == nil {
		// Still searching; the client polls again.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, pairingResponse{
		OpponentID:     pairing.OpponentID,
		OpponentRating: pairing.OpponentRating,
		Room:           pairing.Room,
	})
}

func (s *Server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id required", http.StatusBadRequest)
		return
	}

	if err := s.matchmaking.Cancel(r.Context(), req.PlayerID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRoomRequest struct {
	HostID     string `json:"host_id"`
	HostName   string `json:"host_name"`
	MaxPlayers int    `json:"max_players"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostID == "" {
		http.Error(w, "host_id required", http.StatusBadRequest)
		return
	}

	created, err := s.rooms.Create(r.Context(), req.HostID, req.HostName, req.MaxPlayers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	got, err := s.rooms.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

type joinRoomRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id required", http.StatusBadRequest)
		return
	}

	joined, err := s.rooms.Join(r.Context(), chi.URLParam(r, "roomID"), state.Player{
		ID:   req.PlayerID,
		Name: req.PlayerName,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, joined)
}

type roomPlayerRequest struct {
	PlayerID string `json:"player_id"`
}

func (s *Server) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	var req roomPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id required", http.StatusBadRequest)
		return
	}

	updated, err := s.rooms.MarkReady(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	var req roomPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id required", http.StatusBadRequest)
		return
	}

	started, err := s.rooms.Start(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, started)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req roomPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "player_id required", http.StatusBadRequest)
		return
	}

	left, err := s.rooms.RemovePlayer(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, left)
}

// settleRequest is the single canonical score shape at this boundary;
// ambiguous per-client score layouts must be normalized before calling in.
type settleRequest struct {
	MatchID      string `json:"match_id,omitempty"`
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	WinnerID     string `json:"winner_id"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Mode         string `json:"mode"`
	EndReason    string `json:"end_reason"`
}

type settleResponse struct {
	MatchID       string  `json:"match_id"`
	WinnerID      string  `json:"winner_id"`
	LoserID       string  `json:"loser_id"`
	WinnerRating  int     `json:"winner_rating"`
	LoserRating   int     `json:"loser_rating"`
	WinnerWinRate float64 `json:"winner_winrate"`
	LoserWinRate  float64 `json:"loser_winrate"`
	WinnerGames   int     `json:"winner_games"`
	LoserGames    int     `json:"loser_games"`
}

func (s *Server) handleSettleMatch(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Player1ID == "" || req.Player2ID == "" || req.WinnerID == "" {
		http.Error(w, "player1_id, player2_id and winner_id required", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = "ranked"
	}

	res, err := s.settlement.Settle(r.Context(), settlement.Outcome{
		MatchID:      req.MatchID,
		Player1ID:    req.Player1ID,
		Player2ID:    req.Player2ID,
		WinnerID:     req.WinnerID,
		Player1Score: req.Player1Score,
		Player2Score: req.Player2Score,
		Mode:         req.Mode,
		EndReason:    req.EndReason,
		SeasonID:     s.seasonID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, settleResponse{
		MatchID:       res.MatchID,
		WinnerID:      res.WinnerID,
		LoserID:       res.LoserID,
		WinnerRating:  res.WinnerRating,
		LoserRating:   res.LoserRating,
		WinnerWinRate: res.WinnerRow.WinRate,
		LoserWinRate:  res.LoserRow.WinRate,
		WinnerGames:   res.WinnerRow.Games,
		LoserGames:    res.LoserRow.Games,
	})
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	current, err := s.store.GetRating(r.Context(), playerID, s.seasonID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"rating":    current,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := s.store.Leaderboard(r.Context(), s.seasonID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}
