package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the server reads from the environment.
type Config struct {
	ListenAddr   string
	RedisAddr    string
	DatabasePath string
	SeasonID     string
	RoomTTL      time.Duration
	SearchRange  int
	CandidateCap int
}

// Load reads configuration from the environment with sane defaults for
// local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("DATABASE_PATH", "./data/stackrush.db")
	v.SetDefault("SEASON_ID", "2026-s1")
	v.SetDefault("ROOM_TTL", "1h")
	v.SetDefault("MM_RANGE", 200)
	v.SetDefault("MM_CANDIDATE_CAP", 20)
	v.AutomaticEnv()

	ttl, err := time.ParseDuration(v.GetString("ROOM_TTL"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:   v.GetString("LISTEN_ADDR"),
		RedisAddr:    v.GetString("REDIS_ADDR"),
		DatabasePath: v.GetString("DATABASE_PATH"),
		SeasonID:     v.GetString("SEASON_ID"),
		RoomTTL:      ttl,
		SearchRange:  v.GetInt("MM_RANGE"),
		CandidateCap: v.GetInt("MM_CANDIDATE_CAP"),
	}, nil
}
