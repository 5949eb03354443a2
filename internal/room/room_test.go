package room

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackrush/server/internal/state"
)

func newManager() *Manager {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewManager(state.NewMemoryStore(), log)
}

func TestCreateAndGet(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.Create(ctx, "alice", "Alice", 2)
	require.NoError(t, err)
	require.NotEmpty(t, room.ID)
	assert.Equal(t, "alice", room.HostID)
	assert.False(t, room.Started)
	assert.NotZero(t, room.Seed)
	require.Len(t, room.Players, 1)
	assert.True(t, room.Players[0].Alive)

	got, err := m.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateClampsMaxPlayers(t *testing.T) {
	m := newManager()

	room, err := m.Create(context.Background(), "alice", "Alice", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPlayers, room.MaxPlayers)
}

func TestJoinValidation(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.Create(ctx, "alice", "Alice", 2)
	require.NoError(t, err)

	_, err = m.Join(ctx, room.ID, state.Player{ID: "alice", Name: "Alice"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	joined, err := m.Join(ctx, room.ID, state.Player{ID: "bob", Name: "Bob"})
	require.NoError(t, err)
	require.Len(t, joined.Players, 2)
	assert.False(t, joined.Players[1].Ready)

	_, err = m.Join(ctx, room.ID, state.Player{ID: "carol", Name: "Carol"})
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = m.Join(ctx, "missing", state.Player{ID: "dave"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStartRequiresHostAndReady(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.Create(ctx, "alice", "Alice", 2)
	require.NoError(t, err)
	_, err = m.Join(ctx, room.ID, state.Player{ID: "bob", Name: "Bob"})
	require.NoError(t, err)

	_, err = m.Start(ctx, room.ID, "bob")
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = m.Start(ctx, room.ID, "alice")
	assert.ErrorIs(t, err, ErrPlayersNotReady)

	_, err = m.MarkReady(ctx, room.ID, "alice")
	require.NoError(t, err)
	_, err = m.MarkReady(ctx, room.ID, "bob")
	require.NoError(t, err)

	started, err := m.Start(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.True(t, started.Started)

	// started is monotonic: a second start is rejected, joins too.
	_, err = m.Start(ctx, room.ID, "alice")
	assert.ErrorIs(t, err, ErrRoomStarted)
	_, err = m.Join(ctx, room.ID, state.Player{ID: "carol"})
	assert.ErrorIs(t, err, ErrRoomStarted)
}

func TestMarkReadyUnknownPlayer(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.Create(ctx, "alice", "Alice", 2)
	require.NoError(t, err)

	_, err = m.MarkReady(ctx, room.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRemovePlayer(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.Create(ctx, "alice", "Alice", 2)
	require.NoError(t, err)
	_, err = m.Join(ctx, room.ID, state.Player{ID: "bob", Name: "Bob"})
	require.NoError(t, err)

	// Host leaves: host role moves to the remaining player.
	after, err := m.RemovePlayer(ctx, room.ID, "alice")
	require.NoError(t, err)
	require.Len(t, after.Players, 1)
	assert.Equal(t, "bob", after.HostID)

	_, err = m.RemovePlayer(ctx, room.ID, "alice")
	assert.ErrorIs(t, err, ErrNotInRoom)

	// Last player out deletes the room.
	_, err = m.RemovePlayer(ctx, room.ID, "bob")
	require.NoError(t, err)
	_, err = m.Get(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreatePaired(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	room, err := m.CreatePaired(ctx,
		state.Player{ID: "alice", Name: "Alice"},
		state.Player{ID: "bob", Name: "Bob"},
	)
	require.NoError(t, err)
	assert.Equal(t, "alice", room.HostID)
	assert.Equal(t, 2, room.MaxPlayers)
	require.Len(t, room.Players, 2)
	assert.True(t, room.Players[0].Alive)
	assert.True(t, room.Players[1].Alive)
}
