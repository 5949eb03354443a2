package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRoomRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	room := &Room{
		ID:         "r1",
		HostID:     "alice",
		Started:    true,
		Seed:       424242,
		MaxPlayers: 2,
		Players: []Player{
			{ID: "alice", Name: "Alice", Ready: true, Alive: true, Combo: 3, BackToBack: true},
			{ID: "bob", Name: "Bob", Alive: true},
		},
	}
	require.NoError(t, store.SaveRoom(ctx, room))

	loaded, err := store.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, room.ID, loaded.ID)
	assert.Equal(t, room.HostID, loaded.HostID)
	assert.Equal(t, room.Started, loaded.Started)
	assert.Equal(t, room.Seed, loaded.Seed)
	assert.Equal(t, room.MaxPlayers, loaded.MaxPlayers)
	assert.Equal(t, room.Players, loaded.Players)

	// Every save arms the TTL.
	assert.Greater(t, mr.TTL("room:r1"), time.Duration(0))
}

func TestLoadRoomAbsent(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	room, err := store.LoadRoom(ctx, "never-saved")
	require.NoError(t, err)
	assert.Nil(t, room)

	// Expired rooms read as absent too.
	require.NoError(t, store.SaveRoom(ctx, &Room{ID: "r2", HostID: "h", MaxPlayers: 2}))
	mr.FastForward(2 * time.Hour)
	room, err = store.LoadRoom(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestLoadRoomCorruptFields(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRoom(ctx, &Room{ID: "r3", HostID: "h", Seed: 7, MaxPlayers: 4}))
	mr.HSet("room:r3", "seed", "not-a-number")
	mr.HSet("room:r3", "max_players", "")

	before := time.Now().Unix()
	room, err := store.LoadRoom(ctx, "r3")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.GreaterOrEqual(t, room.Seed, before, "corrupt seed falls back to current time")
	assert.Equal(t, 2, room.MaxPlayers, "corrupt max_players falls back to the two-player default")

	// An unreadable player list counts as a dead record.
	mr.HSet("room:r3", "players", "{broken")
	room, err = store.LoadRoom(ctx, "r3")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestDeleteRoom(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRoom(ctx, &Room{ID: "r4", HostID: "h", MaxPlayers: 2}))
	require.NoError(t, store.DeleteRoom(ctx, "r4"))

	room, err := store.LoadRoom(ctx, "r4")
	require.NoError(t, err)
	assert.Nil(t, room)

	// Idempotent.
	require.NoError(t, store.DeleteRoom(ctx, "r4"))
}

func TestQueueBasics(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "alice", 1000))
	require.NoError(t, store.Enqueue(ctx, "bob", 1200))
	// Re-enqueue overwrites instead of duplicating.
	require.NoError(t, store.Enqueue(ctx, "alice", 1050))

	n, err := store.QueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, store.Dequeue(ctx, "alice"))
	// Dequeue of an absent entry is not an error.
	require.NoError(t, store.Dequeue(ctx, "alice"))

	n, err = store.QueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestClaimOpponentPicksClosest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "requester", 1000))
	require.NoError(t, store.Enqueue(ctx, "far", 1190))
	require.NoError(t, store.Enqueue(ctx, "close", 1040))
	require.NoError(t, store.Enqueue(ctx, "outside", 1500))

	entry, err := store.ClaimOpponent(ctx, "requester", 1000, 200, 20)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "close", entry.PlayerID)
	assert.Equal(t, 1040, entry.Rating)

	// Both the winner and the requester left the queue; "far" and
	// "outside" remain.
	n, err := store.QueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestClaimOpponentExcludesSelfAndRange(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "requester", 1000))
	require.NoError(t, store.Enqueue(ctx, "outside", 1400))

	entry, err := store.ClaimOpponent(ctx, "requester", 1000, 200, 20)
	require.NoError(t, err)
	assert.Nil(t, entry, "own entry and out-of-range entries never match")

	// The requester stays queued after a miss.
	n, err := store.QueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestClaimOpponentTieBreak(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Equal distance above and below: the lower-rated candidate wins.
	require.NoError(t, store.Enqueue(ctx, "below", 950))
	require.NoError(t, store.Enqueue(ctx, "above", 1050))

	entry, err := store.ClaimOpponent(ctx, "requester", 1000, 200, 20)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "below", entry.PlayerID)
}

func TestClaimOpponentNeverDoubleBooks(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "only-opponent", 1010))

	var wg sync.WaitGroup
	results := make([]*QueueEntry, 2)
	requesters := []string{"alice", "bob"}
	for i := range requesters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := store.ClaimOpponent(ctx, requesters[i], 1000, 200, 20)
			assert.NoError(t, err)
			results[i] = entry
		}(i)
	}
	wg.Wait()

	won := 0
	for _, entry := range results {
		if entry != nil {
			won++
			assert.Equal(t, "only-opponent", entry.PlayerID)
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent claim may win the opponent")
}

func TestClaimAfterDequeue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "quitter", 1000))
	require.NoError(t, store.Dequeue(ctx, "quitter"))

	entry, err := store.ClaimOpponent(ctx, "requester", 1000, 200, 20)
	require.NoError(t, err)
	assert.Nil(t, entry, "a cancelled entry is invisible to later claims")
}
