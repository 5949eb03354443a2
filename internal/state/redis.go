package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix = "room:"
	queueKey      = "mm:queue"

	// DefaultRoomTTL is how long an untouched room survives. Every save
	// refreshes it, so abandoned rooms reap themselves.
	DefaultRoomTTL = time.Hour
)

// claimScript selects the closest-rated opponent and removes it in one
// server-side step. Ties on rating distance resolve to the first entry in
// ascending (rating, playerID) order, which is the order ZRANGEBYSCORE
// returns. The requester's own entry leaves the queue in the same step so a
// paired player can never be claimed by someone else afterwards.
var claimScript = redis.NewScript(`
local rating = tonumber(ARGV[2])
local range = tonumber(ARGV[3])
local cap = tonumber(ARGV[4])
local entries = redis.call('ZRANGEBYSCORE', KEYS[1], rating - range, rating + range, 'WITHSCORES', 'LIMIT', 0, cap)
local best = nil
local bestScore = 0
local bestDiff = 0
for i = 1, #entries, 2 do
	local member = entries[i]
	local score = tonumber(entries[i + 1])
	if member ~= ARGV[1] then
		local diff = math.abs(score - rating)
		if best == nil or diff < bestDiff then
			best = member
			bestScore = score
			bestDiff = diff
		end
	end
end
if best == nil then
	return false
end
redis.call('ZREM', KEYS[1], best)
redis.call('ZREM', KEYS[1], ARGV[1])
return {best, tostring(bestScore)}
`)

// RedisStore implements StateStore on a shared redis instance.
type RedisStore struct {
	client  *redis.Client
	roomTTL time.Duration
}

// NewRedisStore creates a RedisStore. A non-positive ttl falls back to
// DefaultRoomTTL.
func NewRedisStore(client *redis.Client, roomTTL time.Duration) *RedisStore {
	if roomTTL <= 0 {
		roomTTL = DefaultRoomTTL
	}
	return &RedisStore{client: client, roomTTL: roomTTL}
}

func roomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

// SaveRoom writes the full room as a hash and refreshes its TTL.
func (s *RedisStore) SaveRoom(ctx context.Context, room *Room) error {
	playersJSON, err := json.Marshal(room.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}

	started := "0"
	if room.Started {
		started = "1"
	}

	key := roomKey(room.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"host_id":     room.HostID,
		"started":     started,
		"seed":        strconv.FormatInt(room.Seed, 10),
		"max_players": strconv.Itoa(room.MaxPlayers),
		"players":     string(playersJSON),
		"updated_at":  strconv.FormatInt(time.Now().Unix(), 10),
	})
	pipe.Expire(ctx, key, s.roomTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

// LoadRoom reads a room back. Missing or expired ids return (nil, nil).
// Corrupt numeric fields fall back to defaults rather than failing the read;
// an unreadable player list makes the whole record count as absent.
func (s *RedisStore) LoadRoom(ctx context.Context, roomID string) (*Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	room := &Room{
		ID:         roomID,
		HostID:     fields["host_id"],
		Started:    fields["started"] == "1",
		Seed:       parseInt64Field(fields, "seed", time.Now().Unix()),
		MaxPlayers: int(parseInt64Field(fields, "max_players", 2)),
		UpdatedAt:  time.Unix(parseInt64Field(fields, "updated_at", time.Now().Unix()), 0),
	}

	if raw := fields["players"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Players); err != nil {
			return nil, nil
		}
	}
	return room, nil
}

// DeleteRoom removes a room. Deleting an absent room is not an error.
func (s *RedisStore) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

// Enqueue inserts or overwrites the player's queue entry keyed by rating.
func (s *RedisStore) Enqueue(ctx context.Context, playerID string, rating int) error {
	err := s.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(rating),
		Member: playerID,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", playerID, err)
	}
	return nil
}

// Dequeue removes the player's queue entry, if any.
func (s *RedisStore) Dequeue(ctx context.Context, playerID string) error {
	if err := s.client.ZRem(ctx, queueKey, playerID).Err(); err != nil {
		return fmt.Errorf("dequeue %s: %w", playerID, err)
	}
	return nil
}

// QueueSize returns the number of queued players.
func (s *RedisStore) QueueSize(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

// ClaimOpponent runs the claim script. (nil, nil) means no eligible
// candidate, which is also the normal outcome of losing a claim race.
func (s *RedisStore) ClaimOpponent(ctx context.Context, requesterID string, rating, searchRange, limit int) (*QueueEntry, error) {
	res, err := claimScript.Run(ctx, s.client, []string{queueKey},
		requesterID, rating, searchRange, limit).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim opponent for %s: %w", requesterID, err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("claim opponent for %s: unexpected reply %v", requesterID, res)
	}
	member, _ := pair[0].(string)
	scoreStr, _ := pair[1].(string)
	score, err := strconv.ParseFloat(scoreStr, 64)
	if err != nil {
		return nil, fmt.Errorf("claim opponent for %s: bad score %q", requesterID, scoreStr)
	}
	return &QueueEntry{PlayerID: member, Rating: int(score)}, nil
}

func parseInt64Field(fields map[string]string, name string, def int64) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return def
	}
	return v
}
