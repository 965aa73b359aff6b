// internal/engine/supervisor.go
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/cache"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
	"github.com/rgillies/switchgame/internal/store"
)

// GameSupervisor owns the id-to-actor registry. Lookups are a read
// lock; the actors themselves never touch the registry except through
// the exit callback.
type GameSupervisor struct {
	mu      sync.RWMutex
	games   map[uuid.UUID]*Engine
	strat   Strategy
	log     *logrus.Logger
	cfg     Config
	store   store.Store
	queue   *cache.Queue
	cutoffs store.StaleCutoffs

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewGameSupervisor builds an empty registry. store and queue may be
// nil; games then run unpersisted.
func NewGameSupervisor(strat Strategy, logger *logrus.Logger, cfg Config, st store.Store, queue *cache.Queue) *GameSupervisor {
	return &GameSupervisor{
		games:     make(map[uuid.UUID]*Engine),
		strat:     strat,
		log:       logger,
		cfg:       cfg,
		store:     st,
		queue:     queue,
		cutoffs:   store.DefaultStaleCutoffs,
		sweepStop: make(chan struct{}),
	}
}

// StartGame creates and registers a new game actor.
func (s *GameSupervisor) StartGame(id uuid.UUID, seats []models.Seat) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; ok {
		return nil, game.NewError(game.KindAlreadyStarted, "a game with this id is already running", nil)
	}
	e, err := New(id, seats, s.strat, s.log, s.cfg, s.options()...)
	if err != nil {
		return nil, err
	}
	s.games[id] = e
	s.log.WithField("game_id", id).Info("game registered")
	return e, nil
}

// GetGame looks up a running actor.
func (s *GameSupervisor) GetGame(id uuid.UUID) (*Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.games[id]
	return e, ok
}

// StopGame terminates and deregisters an actor.
func (s *GameSupervisor) StopGame(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()
	if ok {
		e.Stop()
	}
}

// ListGames returns the ids of every running actor.
func (s *GameSupervisor) ListGames() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	return ids
}

// RestoreGame rebuilds one actor from its persisted snapshot.
func (s *GameSupervisor) RestoreGame(snap models.Snapshot) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.games[snap.GameID]; ok {
		return e, nil
	}
	e, err := NewFromSnapshot(snap, s.strat, s.log, s.cfg, s.options()...)
	if err != nil {
		return nil, err
	}
	s.games[snap.GameID] = e
	s.log.WithField("game_id", snap.GameID).Info("game restored from snapshot")
	return e, nil
}

// RestoreActive loads every in-progress snapshot from the store and
// re-registers its actor. Called once at boot, before the server
// accepts traffic.
func (s *GameSupervisor) RestoreActive(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snaps, err := s.store.ListByStatus(ctx, string(game.StatusPlaying))
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if _, err := s.RestoreGame(snap); err != nil {
			s.log.WithError(err).WithField("game_id", snap.GameID).Error("restore failed, skipping")
		}
	}
	s.log.WithField("count", len(snaps)).Info("active games restored")
	return nil
}

// StartSweeper begins the periodic stale-game reaper: finished games
// past their retention, waiting lobbies nobody started, and in-progress
// games idle long enough to be presumed dead.
func (s *GameSupervisor) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.sweepStop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSweeper halts the reaper.
func (s *GameSupervisor) StopSweeper() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })
}

func (s *GameSupervisor) sweep(ctx context.Context) {
	if s.store == nil {
		return
	}
	snaps, err := s.store.ListStale(ctx, s.cutoffs)
	if err != nil {
		s.log.WithError(err).Error("stale sweep query failed")
		return
	}
	for _, snap := range snaps {
		s.StopGame(snap.GameID)
		if err := s.store.Delete(ctx, snap.GameID); err != nil {
			s.log.WithError(err).WithField("game_id", snap.GameID).Error("stale game delete failed")
			continue
		}
		s.log.WithFields(logrus.Fields{
			"game_id": snap.GameID,
			"status":  snap.Status,
		}).Info("stale game reaped")
	}
}

// Shutdown stops every actor and the sweeper.
func (s *GameSupervisor) Shutdown() {
	s.StopSweeper()
	s.mu.Lock()
	engines := make([]*Engine, 0, len(s.games))
	for _, e := range s.games {
		engines = append(engines, e)
	}
	s.games = make(map[uuid.UUID]*Engine)
	s.mu.Unlock()
	for _, e := range engines {
		e.Stop()
	}
}

func (s *GameSupervisor) options() []Option {
	opts := []Option{WithOnExit(s.onEngineExit)}
	if s.store != nil {
		opts = append(opts, WithStore(s.store))
	}
	if s.queue != nil {
		opts = append(opts, WithQueue(s.queue))
	}
	return opts
}

// onEngineExit deregisters self-terminating actors (finished games past
// their linger window).
func (s *GameSupervisor) onEngineExit(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}
