// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/ai"
	"github.com/rgillies/switchgame/internal/cache"
	"github.com/rgillies/switchgame/internal/engine"
	"github.com/rgillies/switchgame/internal/handlers"
	"github.com/rgillies/switchgame/internal/middleware"
	"github.com/rgillies/switchgame/internal/models"
	"github.com/rgillies/switchgame/internal/session"
	"github.com/rgillies/switchgame/internal/store"
)

func main() {
	session.InitKeys()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	// Checkpoint store: Postgres when configured, in-memory otherwise.
	var st store.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := store.ConnectPostgres(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres checkpoint store")
	} else {
		st = store.NewMemory()
		logger.Info("DATABASE_URL unset, using in-memory store")
	}

	// Event history queue is optional.
	var queue *cache.Queue
	if os.Getenv("REDIS_ADDR") != "" {
		q, err := cache.Connect(ctx)
		if err != nil {
			logger.WithError(err).Warn("redis connect failed, events will not be mirrored")
		} else {
			queue = q
			defer queue.Close()
		}
	}

	supervisor := engine.NewGameSupervisor(ai.New(), logger, engine.Config{
		TurnTimeout: envDuration("TURN_TIMEOUT", 0),
	}, st, queue)
	defer supervisor.Shutdown()

	if err := supervisor.RestoreActive(ctx); err != nil {
		logger.WithError(err).Error("crash recovery failed, continuing with empty registry")
	}
	supervisor.StartSweeper(ctx, envDuration("SWEEP_INTERVAL", 5*time.Minute))

	sessions := session.NewManager(logger)
	defer sessions.Stop()

	monitor := session.NewMonitor(logger, envDuration("RECONNECT_TIMEOUT", session.DefaultReconnectTimeout),
		func(gameID, seatID uuid.UUID, status models.ConnectionStatus) {
			if e, ok := supervisor.GetGame(gameID); ok {
				if err := e.SetConnection(seatID, status); err != nil {
					logger.WithError(err).Warn("connection status update failed")
				}
			}
		},
		func(gameID, seatID uuid.UUID) {
			if e, ok := supervisor.GetGame(gameID); ok {
				if err := e.HandleAbandon(seatID); err != nil {
					logger.WithError(err).Warn("abandon handling failed")
				}
			}
		})
	defer monitor.Stop()

	srv := handlers.NewAPIServer(logger, supervisor, sessions, monitor)

	mux := http.NewServeMux()

	logged := middleware.LogMiddleware(logger)
	recovered := middleware.RecoverMiddleware(logger)
	wrap := func(h http.HandlerFunc) http.Handler {
		return recovered(logged(h))
	}

	// game endpoints
	mux.Handle("/game/create", wrap(srv.CreateGameHandler()))
	mux.Handle("/game/join", wrap(srv.JoinGameHandler()))
	mux.Handle("/game/start", wrap(srv.StartGameHandler()))
	mux.Handle("/game/leave", wrap(srv.LeaveGameHandler()))
	mux.Handle("/game/list", wrap(srv.ListGamesHandler()))
	mux.Handle("/game/state", wrap(srv.GetStateHandler()))

	// game websocket
	mux.Handle("/game/ws/", wrap(handlers.GameWSHandler(logger, srv)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// envDuration reads a duration env var, falling back when unset or
// malformed.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("bad %s value %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
