package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stackrush/server/internal/rating"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ratings (
			user_id TEXT NOT NULL,
			season_id TEXT NOT NULL,
			rating INTEGER NOT NULL DEFAULT 1000,
			win_streak INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, season_id)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			player1 TEXT NOT NULL,
			player2 TEXT NOT NULL,
			winner TEXT NOT NULL,
			p1_score INTEGER NOT NULL,
			p2_score INTEGER NOT NULL,
			mode TEXT NOT NULL,
			end_reason TEXT,
			ended_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id TEXT NOT NULL,
			season_id TEXT NOT NULL,
			rating INTEGER NOT NULL,
			games INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			winrate REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, season_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_rating ON leaderboard(season_id, rating DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one transaction, rolling back on any error.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRating returns the player's current rating outside any transaction.
// Unknown players read as the default rating.
func (s *SQLiteStore) GetRating(ctx context.Context, userID, seasonID string) (int, error) {
	var r int
	err := s.db.QueryRowContext(ctx,
		`SELECT rating FROM ratings WHERE user_id = ? AND season_id = ?`,
		userID, seasonID).Scan(&r)
	if err == sql.ErrNoRows {
		return rating.DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return r, nil
}

// GetMatch retrieves a settled match by id.
func (s *SQLiteStore) GetMatch(ctx context.Context, matchID string) (*MatchRecord, error) {
	var m MatchRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, player1, player2, winner, p1_score, p2_score, mode, end_reason, ended_at
		 FROM matches WHERE id = ?`, matchID).Scan(
		&m.ID, &m.Player1ID, &m.Player2ID, &m.WinnerID,
		&m.Player1Score, &m.Player2Score, &m.Mode, &m.EndReason, &m.EndedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Leaderboard returns the top rows for a season, rating descending.
func (s *SQLiteStore) Leaderboard(ctx context.Context, seasonID string, limit int) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, season_id, rating, games, wins, winrate
		 FROM leaderboard
		 WHERE season_id = ?
		 ORDER BY rating DESC, user_id
		 LIMIT ?`, seasonID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.SeasonID, &row.Rating, &row.Games, &row.Wins, &row.WinRate); err != nil {
			return nil, err
		}
		row.Rank = len(entries) + 1
		entries = append(entries, row)
	}
	return entries, rows.Err()
}

// sqliteTx implements Tx on an open transaction.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertMatch(ctx context.Context, match *MatchRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO matches (id, player1, player2, winner, p1_score, p2_score, mode, end_reason, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.Player1ID, match.Player2ID, match.WinnerID,
		match.Player1Score, match.Player2Score, match.Mode, match.EndReason, match.EndedAt,
	)
	return err
}

func (t *sqliteTx) GetRating(ctx context.Context, userID, seasonID string) (*RatingRecord, error) {
	var rec RatingRecord
	err := t.tx.QueryRowContext(ctx,
		`SELECT user_id, season_id, rating, win_streak, updated_at
		 FROM ratings WHERE user_id = ? AND season_id = ?`,
		userID, seasonID).Scan(
		&rec.UserID, &rec.SeasonID, &rec.Rating, &rec.WinStreak, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *sqliteTx) UpsertRating(ctx context.Context, rec *RatingRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO ratings (user_id, season_id, rating, win_streak, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, season_id) DO UPDATE SET
			rating = excluded.rating,
			win_streak = excluded.win_streak,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.SeasonID, rec.Rating, rec.WinStreak, time.Now(),
	)
	return err
}

func (t *sqliteTx) GetLeaderboardRow(ctx context.Context, userID, seasonID string) (*LeaderboardRow, error) {
	var row LeaderboardRow
	err := t.tx.QueryRowContext(ctx,
		`SELECT user_id, season_id, rating, games, wins, winrate
		 FROM leaderboard WHERE user_id = ? AND season_id = ?`,
		userID, seasonID).Scan(
		&row.UserID, &row.SeasonID, &row.Rating, &row.Games, &row.Wins, &row.WinRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (t *sqliteTx) UpsertLeaderboardRow(ctx context.Context, row *LeaderboardRow) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO leaderboard (user_id, season_id, rating, games, wins, winrate)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, season_id) DO UPDATE SET
			rating = excluded.rating,
			games = excluded.games,
			wins = excluded.wins,
			winrate = excluded.winrate`,
		row.UserID, row.SeasonID, row.Rating, row.Games, row.Wins, row.WinRate,
	)
	return err
}
