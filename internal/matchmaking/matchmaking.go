package matchmaking

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stackrush/server/internal/room"
	"github.com/stackrush/server/internal/state"
)

const (
	// DefaultSearchRange is the rating window scanned around the requester.
	DefaultSearchRange = 200
	// DefaultCandidateCap bounds how many queue entries one search inspects.
	DefaultCandidateCap = 20
)

// Pairing is the result of a successful match search. The room is already
// created with both players seated.
type Pairing struct {
	OpponentID     string
	OpponentRating int
	Room           *state.Room
}

// Engine pairs queued players by rating. All queue state lives in the shared
// state store, so any number of server processes can search concurrently;
// the store's atomic claim guarantees an opponent is paired at most once.
type Engine struct {
	store        state.StateStore
	rooms        *room.Manager
	log          *logrus.Logger
	candidateCap int
}

// NewEngine creates a matchmaking engine. A non-positive candidateCap falls
// back to DefaultCandidateCap.
func NewEngine(store state.StateStore, rooms *room.Manager, log *logrus.Logger, candidateCap int) *Engine {
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}
	return &Engine{store: store, rooms: rooms, log: log, candidateCap: candidateCap}
}

// Enqueue places a player in the queue, overwriting any previous entry.
func (e *Engine) Enqueue(ctx context.Context, playerID string, playerRating int) error {
	if err := e.store.Enqueue(ctx, playerID, playerRating); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"player": playerID,
		"rating": playerRating,
	}).Info("player enqueued")
	return nil
}

// Cancel removes a player's pending request. Cancelling after a pairing has
// already claimed the entry is a no-op, not an error.
func (e *Engine) Cancel(ctx context.Context, playerID string) error {
	if err := e.store.Dequeue(ctx, playerID); err != nil {
		return err
	}
	e.log.WithField("player", playerID).Info("player left queue")
	return nil
}

// QueueSize reports how many players are waiting.
func (e *Engine) QueueSize(ctx context.Context) (int64, error) {
	return e.store.QueueSize(ctx)
}

// FindMatch searches for the closest-rated opponent within searchRange. On a
// hit it opens the room for the pair and returns the pairing; on a miss it
// returns (nil, nil) and the requester stays queued.
func (e *Engine) FindMatch(ctx context.Context, playerID string, playerRating, searchRange int) (*Pairing, error) {
	if searchRange <= 0 {
		searchRange = DefaultSearchRange
	}

	entry, err := e.store.ClaimOpponent(ctx, playerID, playerRating, searchRange, e.candidateCap)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	matchRoom, err := e.rooms.CreatePaired(ctx,
		state.Player{ID: playerID, Name: playerID},
		state.Player{ID: entry.PlayerID, Name: entry.PlayerID},
	)
	if err != nil {
		// The claim already consumed both entries. Put them back so
		// neither player is silently lost from the queue.
		if reErr := e.store.Enqueue(ctx, entry.PlayerID, entry.Rating); reErr != nil {
			e.log.WithError(reErr).WithField("player", entry.PlayerID).
				Error("failed to requeue claimed opponent")
		}
		if reErr := e.store.Enqueue(ctx, playerID, playerRating); reErr != nil {
			e.log.WithError(reErr).WithField("player", playerID).
				Error("failed to requeue requester")
		}
		return nil, fmt.Errorf("open room for pairing: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"player":   playerID,
		"opponent": entry.PlayerID,
		"room":     matchRoom.ID,
		"gap":      abs(entry.Rating - playerRating),
	}).Info("players paired")

	return &Pairing{
		OpponentID:     entry.PlayerID,
		OpponentRating: entry.Rating,
		Room:           matchRoom,
	}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
