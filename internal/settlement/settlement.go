package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stackrush/server/internal/rating"
	"github.com/stackrush/server/internal/store"
)

// ErrInvalidOutcome rejects outcomes whose winner is not one of the players.
var ErrInvalidOutcome = errors.New("winner is not a participant of the match")

// Outcome describes a finished series as reported by the game layer.
// MatchID may be left empty, in which case one is generated; callers that
// supply their own id get exactly-once settlement backstopped by the match
// table's primary key.
type Outcome struct {
	MatchID      string
	Player1ID    string
	Player2ID    string
	WinnerID     string
	Player1Score int
	Player2Score int
	Mode         string
	EndReason    string
	SeasonID     string
	EndedAt      time.Time
}

// Result is the committed post-settlement state for both players.
type Result struct {
	MatchID      string
	WinnerID     string
	LoserID      string
	WinnerRating int
	LoserRating  int
	WinnerRow    store.LeaderboardRow
	LoserRow     store.LeaderboardRow
}

// ComputeFunc matches rating.ComputeDelta and exists so tests can observe or
// replace the rating step.
type ComputeFunc func(ratingWinner, ratingLoser, winScore, loseScore, winnerStreak int) rating.Delta

// Service commits match outcomes. Everything — the match row, both rating
// rows, both leaderboard rows — lands in one transaction; a failure at any
// step leaves the durable store exactly as it was.
type Service struct {
	store   store.Store
	compute ComputeFunc
	log     *logrus.Logger
}

// New creates a settlement service backed by the given store.
func New(st store.Store, log *logrus.Logger) *Service {
	return &Service{store: st, compute: rating.ComputeDelta, log: log}
}

// Settle persists the outcome and applies the rating and leaderboard
// updates atomically. Ratings are read inside the transaction, so no other
// settlement can observe or clobber an intermediate state.
func (s *Service) Settle(ctx context.Context, out Outcome) (*Result, error) {
	winnerID, loserID, winScore, loseScore, err := out.normalize()
	if err != nil {
		return nil, err
	}
	if out.MatchID == "" {
		out.MatchID = uuid.New().String()
	}
	if out.EndedAt.IsZero() {
		out.EndedAt = time.Now()
	}

	var res Result
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertMatch(ctx, &store.MatchRecord{
			ID:           out.MatchID,
			Player1ID:    out.Player1ID,
			Player2ID:    out.Player2ID,
			WinnerID:     winnerID,
			Player1Score: out.Player1Score,
			Player2Score: out.Player2Score,
			Mode:         out.Mode,
			EndReason:    out.EndReason,
			EndedAt:      out.EndedAt,
		}); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		winnerRec, err := s.loadOrDefault(ctx, tx, winnerID, out.SeasonID)
		if err != nil {
			return err
		}
		loserRec, err := s.loadOrDefault(ctx, tx, loserID, out.SeasonID)
		if err != nil {
			return err
		}

		delta := s.compute(winnerRec.Rating, loserRec.Rating, winScore, loseScore, winnerRec.WinStreak)

		winnerRec.Rating += delta.WinGain
		winnerRec.WinStreak++
		loserRec.Rating = rating.ApplyFloor(loserRec.Rating + delta.LoseLoss)
		loserRec.WinStreak = 0

		if err := tx.UpsertRating(ctx, winnerRec); err != nil {
			return fmt.Errorf("upsert winner rating: %w", err)
		}
		if err := tx.UpsertRating(ctx, loserRec); err != nil {
			return fmt.Errorf("upsert loser rating: %w", err)
		}

		winnerRow, err := s.bumpLeaderboard(ctx, tx, winnerRec, true)
		if err != nil {
			return err
		}
		loserRow, err := s.bumpLeaderboard(ctx, tx, loserRec, false)
		if err != nil {
			return err
		}

		res = Result{
			MatchID:      out.MatchID,
			WinnerID:     winnerID,
			LoserID:      loserID,
			WinnerRating: winnerRec.Rating,
			LoserRating:  loserRec.Rating,
			WinnerRow:    *winnerRow,
			LoserRow:     *loserRow,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"match":         res.MatchID,
		"winner":        res.WinnerID,
		"loser":         res.LoserID,
		"winner_rating": res.WinnerRating,
		"loser_rating":  res.LoserRating,
	}).Info("match settled")
	return &res, nil
}

func (out Outcome) normalize() (winnerID, loserID string, winScore, loseScore int, err error) {
	switch out.WinnerID {
	case out.Player1ID:
		return out.Player1ID, out.Player2ID, out.Player1Score, out.Player2Score, nil
	case out.Player2ID:
		return out.Player2ID, out.Player1ID, out.Player2Score, out.Player1Score, nil
	default:
		return "", "", 0, 0, ErrInvalidOutcome
	}
}

func (s *Service) loadOrDefault(ctx context.Context, tx store.Tx, userID, seasonID string) (*store.RatingRecord, error) {
	rec, err := tx.GetRating(ctx, userID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("read rating for %s: %w", userID, err)
	}
	if rec == nil {
		// First settled match for this player this season.
		rec = &store.RatingRecord{
			UserID:   userID,
			SeasonID: seasonID,
			Rating:   rating.DefaultRating,
		}
	}
	return rec, nil
}

// bumpLeaderboard folds one outcome into the player's aggregate row. The win
// rate is recomputed from the stored totals, not from match history, so the
// update stays O(1).
func (s *Service) bumpLeaderboard(ctx context.Context, tx store.Tx, rec *store.RatingRecord, won bool) (*store.LeaderboardRow, error) {
	row, err := tx.GetLeaderboardRow(ctx, rec.UserID, rec.SeasonID)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard row for %s: %w", rec.UserID, err)
	}
	if row == nil {
		row = &store.LeaderboardRow{UserID: rec.UserID, SeasonID: rec.SeasonID}
	}

	row.Rating = rec.Rating
	row.Games++
	if won {
		row.Wins++
	}
	row.WinRate = float64(row.Wins) / float64(row.Games) * 100

	if err := tx.UpsertLeaderboardRow(ctx, row); err != nil {
		return nil, fmt.Errorf("upsert leaderboard row for %s: %w", rec.UserID, err)
	}
	return row, nil
}
