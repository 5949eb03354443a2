package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stackrush/server/internal/state"
)

// DefaultMaxPlayers is used when a caller asks for fewer than two seats.
const DefaultMaxPlayers = 2

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomStarted     = errors.New("room already started")
	ErrAlreadyJoined   = errors.New("already in this room")
	ErrNotInRoom       = errors.New("player not in this room")
	ErrNotHost         = errors.New("only the host can start the room")
	ErrPlayersNotReady = errors.New("not all players are ready")
)

// Manager owns the room lifecycle on top of the shared state store. Every
// mutation is load, validate, save-whole-room; concurrent writers to the same
// room resolve last-writer-wins, which is acceptable because rooms are
// short-lived and every save refreshes the TTL.
type Manager struct {
	store state.StateStore
	log   *logrus.Logger
}

// NewManager creates a room manager.
func NewManager(store state.StateStore, log *logrus.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// Create opens a new room with the host seated.
func (m *Manager) Create(ctx context.Context, hostID, hostName string, maxPlayers int) (*state.Room, error) {
	if maxPlayers < 2 {
		maxPlayers = DefaultMaxPlayers
	}
	room := &state.Room{
		ID:         uuid.New().String(),
		HostID:     hostID,
		Seed:       time.Now().UnixNano(),
		MaxPlayers: maxPlayers,
		Players: []state.Player{
			{ID: hostID, Name: hostName, Alive: true},
		},
	}
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"room": room.ID,
		"host": hostID,
	}).Info("room created")
	return room, nil
}

// CreatePaired opens a started-pending room seating both players of a fresh
// matchmaking pairing. The requester hosts.
func (m *Manager) CreatePaired(ctx context.Context, host, opponent state.Player) (*state.Room, error) {
	host.Alive = true
	opponent.Alive = true
	room := &state.Room{
		ID:         uuid.New().String(),
		HostID:     host.ID,
		Seed:       time.Now().UnixNano(),
		MaxPlayers: 2,
		Players:    []state.Player{host, opponent},
	}
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create paired room: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"room":     room.ID,
		"host":     host.ID,
		"opponent": opponent.ID,
	}).Info("paired room created")
	return room, nil
}

// Get loads a room. A missing room returns ErrRoomNotFound.
func (m *Manager) Get(ctx context.Context, roomID string) (*state.Room, error) {
	room, err := m.store.LoadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Join seats a player. Full or started rooms reject the join.
func (m *Manager) Join(ctx context.Context, roomID string, player state.Player) (*state.Room, error) {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Started {
		return nil, ErrRoomStarted
	}
	if room.HasPlayer(player.ID) {
		return nil, ErrAlreadyJoined
	}
	if len(room.Players) >= room.MaxPlayers {
		return nil, ErrRoomFull
	}

	player.Ready = false
	player.Alive = true
	room.Players = append(room.Players, player)
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"room":   roomID,
		"player": player.ID,
		"seated": len(room.Players),
	}).Info("player joined room")
	return room, nil
}

// MarkReady flags a seated player as ready.
func (m *Manager) MarkReady(ctx context.Context, roomID, playerID string) (*state.Room, error) {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Started {
		return nil, ErrRoomStarted
	}

	found := false
	for i := range room.Players {
		if room.Players[i].ID == playerID {
			room.Players[i].Ready = true
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNotInRoom
	}

	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("mark ready: %w", err)
	}
	return room, nil
}

// Start flips the room to started. Only the host may start, every seated
// player must be ready, and the flag never reverts.
func (m *Manager) Start(ctx context.Context, roomID, playerID string) (*state.Room, error) {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Started {
		return nil, ErrRoomStarted
	}
	if room.HostID != playerID {
		return nil, ErrNotHost
	}
	for _, p := range room.Players {
		if !p.Ready {
			return nil, ErrPlayersNotReady
		}
	}

	room.Started = true
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("start room: %w", err)
	}

	m.log.WithField("room", roomID).Info("room started")
	return room, nil
}

// RemovePlayer unseats a player. The room is deleted once it empties out.
func (m *Manager) RemovePlayer(ctx context.Context, roomID, playerID string) (*state.Room, error) {
	room, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	kept := room.Players[:0]
	found := false
	for _, p := range room.Players {
		if p.ID == playerID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return nil, ErrNotInRoom
	}
	room.Players = kept

	if len(room.Players) == 0 {
		if err := m.store.DeleteRoom(ctx, roomID); err != nil {
			return nil, fmt.Errorf("delete empty room: %w", err)
		}
		m.log.WithField("room", roomID).Info("room emptied and deleted")
		return room, nil
	}

	if room.HostID == playerID {
		room.HostID = room.Players[0].ID
	}
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("remove player: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"room":   roomID,
		"player": playerID,
	}).Info("player left room")
	return room, nil
}
