package state

import (
	"context"
	"time"
)

// Player is a seat inside a Room. The combo and back-to-back fields are
// written by the game layer and carried opaquely by this package.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Ready      bool   `json:"ready"`
	Alive      bool   `json:"alive"`
	Combo      int    `json:"combo"`
	BackToBack bool   `json:"back_to_back"`
}

// Room is the shared, ephemeral state of one live match. It is owned by the
// state store: every server process reads and writes the same record.
type Room struct {
	ID         string    `json:"id"`
	HostID     string    `json:"host_id"`
	Started    bool      `json:"started"`
	Seed       int64     `json:"seed"`
	MaxPlayers int       `json:"max_players"`
	Players    []Player  `json:"players"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasPlayer reports whether the given player id is seated in the room.
func (r *Room) HasPlayer(playerID string) bool {
	for _, p := range r.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// QueueEntry is one pending matchmaking request, ordered by rating.
type QueueEntry struct {
	PlayerID string
	Rating   int
}

// StateStore is the single cross-process home for rooms and the matchmaking
// queue. Absence is a normal outcome: LoadRoom and ClaimOpponent return
// (nil, nil) when there is nothing to return. Any non-nil error is a
// transient store failure and safe to retry.
type StateStore interface {
	SaveRoom(ctx context.Context, room *Room) error
	LoadRoom(ctx context.Context, roomID string) (*Room, error)
	DeleteRoom(ctx context.Context, roomID string) error

	// Enqueue inserts or overwrites the player's queue entry.
	Enqueue(ctx context.Context, playerID string, rating int) error
	// Dequeue removes the player's entry. Removing an absent entry is not
	// an error.
	Dequeue(ctx context.Context, playerID string) error
	QueueSize(ctx context.Context) (int64, error)

	// ClaimOpponent atomically selects and removes the queued player whose
	// rating is closest to the requester's, within searchRange and bounded
	// to limit candidates. The requester's own entry is excluded and also
	// removed on success. Two concurrent claims can never select the same
	// opponent.
	ClaimOpponent(ctx context.Context, requesterID string, rating, searchRange, limit int) (*QueueEntry, error)
}
