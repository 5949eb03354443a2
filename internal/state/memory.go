package state

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process StateStore for tests. It mirrors the redis
// semantics, including copy-on-save so callers never share a Room pointer
// with the store.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
	queue map[string]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
		queue: make(map[string]int),
	}
}

func copyRoom(room *Room) *Room {
	c := *room
	c.Players = make([]Player, len(room.Players))
	copy(c.Players, room.Players)
	return &c
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyRoom(room)
	c.UpdatedAt = time.Now()
	s.rooms[room.ID] = c
	return nil
}

func (s *MemoryStore) LoadRoom(_ context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return copyRoom(room), nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func (s *MemoryStore) Enqueue(_ context.Context, playerID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[playerID] = rating
	return nil
}

func (s *MemoryStore) Dequeue(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, playerID)
	return nil
}

func (s *MemoryStore) QueueSize(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queue)), nil
}

func (s *MemoryStore) ClaimOpponent(_ context.Context, requesterID string, rating, searchRange, limit int) (*QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Candidates in ascending (rating, playerID) order, like ZRANGEBYSCORE.
	candidates := make([]QueueEntry, 0, len(s.queue))
	for id, r := range s.queue {
		if r >= rating-searchRange && r <= rating+searchRange {
			candidates = append(candidates, QueueEntry{PlayerID: id, Rating: r})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Rating != candidates[j].Rating {
			return candidates[i].Rating < candidates[j].Rating
		}
		return candidates[i].PlayerID < candidates[j].PlayerID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var best *QueueEntry
	bestDiff := 0
	for i := range candidates {
		c := candidates[i]
		if c.PlayerID == requesterID {
			continue
		}
		diff := c.Rating - rating
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &candidates[i]
			bestDiff = diff
		}
	}
	if best == nil {
		return nil, nil
	}
	delete(s.queue, best.PlayerID)
	delete(s.queue, requesterID)
	return &QueueEntry{PlayerID: best.PlayerID, Rating: best.Rating}, nil
}
