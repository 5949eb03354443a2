package store

import (
	"context"
	"time"
)

// RatingRecord is a player's skill state for one season. Only match
// settlement mutates it.
type RatingRecord struct {
	UserID    string
	SeasonID  string
	Rating    int
	WinStreak int
	UpdatedAt time.Time
}

// MatchRecord is one settled series. Rows are append-only: the match id is
// the primary key, so settling the same id twice fails the insert.
type MatchRecord struct {
	ID           string
	Player1ID    string
	Player2ID    string
	WinnerID     string
	Player1Score int
	Player2Score int
	Mode         string
	EndReason    string
	EndedAt      time.Time
}

// LeaderboardRow is the per-season aggregate for one player. Rank is filled
// in on reads, ordered by rating descending.
type LeaderboardRow struct {
	UserID   string
	SeasonID string
	Rating   int
	Games    int
	Wins     int
	WinRate  float64
	Rank     int
}

// Tx is the set of operations available inside one settlement transaction.
// Lookups return (nil, nil) when no row exists.
type Tx interface {
	InsertMatch(ctx context.Context, match *MatchRecord) error
	GetRating(ctx context.Context, userID, seasonID string) (*RatingRecord, error)
	UpsertRating(ctx context.Context, rec *RatingRecord) error
	GetLeaderboardRow(ctx context.Context, userID, seasonID string) (*LeaderboardRow, error)
	UpsertLeaderboardRow(ctx context.Context, row *LeaderboardRow) error
}

// Store is the durable home for ratings, match history and the leaderboard.
type Store interface {
	// InTx runs fn inside a single transaction. If fn returns an error the
	// whole unit rolls back and nothing becomes observable.
	InTx(ctx context.Context, fn func(Tx) error) error

	// GetRating returns the player's current rating, defaulting for
	// players who have never settled a match.
	GetRating(ctx context.Context, userID, seasonID string) (int, error)
	// GetMatch returns a settled match, or nil if the id is unknown.
	GetMatch(ctx context.Context, matchID string) (*MatchRecord, error)
	// Leaderboard returns up to limit rows ordered by rating descending,
	// with rank positions assigned.
	Leaderboard(ctx context.Context, seasonID string, limit int) ([]LeaderboardRow, error)

	Close() error
}
