package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stackrush/server/internal/config"
	"github.com/stackrush/server/internal/matchmaking"
	"github.com/stackrush/server/internal/room"
	"github.com/stackrush/server/internal/settlement"
	"github.com/stackrush/server/internal/state"
	"github.com/stackrush/server/internal/store"
	"github.com/stackrush/server/internal/web"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// Shared state store (rooms + matchmaking queue)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("redis unreachable")
	}
	cancelPing()
	stateStore := state.NewRedisStore(redisClient, cfg.RoomTTL)

	// Durable store (ratings, match history, leaderboard)
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.WithError(err).Fatal("failed to create data directory")
	}
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	// Core services
	rooms := room.NewManager(stateStore, log)
	mm := matchmaking.NewEngine(stateStore, rooms, log, cfg.CandidateCap)
	settle := settlement.New(db, log)

	server := web.NewServer(mm, rooms, settle, db, log, web.Config{
		SeasonID:    cfg.SeasonID,
		SearchRange: cfg.SearchRange,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	// Handle shutdown signals
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown error")
		}
		redisClient.Close()
	}()

	log.WithFields(logrus.Fields{
		"addr":   cfg.ListenAddr,
		"season": cfg.SeasonID,
	}).Info("server running")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("HTTP server error")
	}

	log.Info("server stopped")
}
