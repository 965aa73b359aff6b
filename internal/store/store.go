// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/models"
)

// ErrNotFound is returned by Load when no snapshot exists for the id.
var ErrNotFound = errors.New("game not found")

// StaleCutoffs are the idle ages after which the sweeper removes a
// game, keyed by the game's lifecycle status.
type StaleCutoffs struct {
	Finished   time.Duration
	Waiting    time.Duration
	InProgress time.Duration
}

// DefaultStaleCutoffs matches the cleanup contract: finished games idle
// one hour, waiting lobbies idle thirty minutes, in-progress games idle
// two hours.
var DefaultStaleCutoffs = StaleCutoffs{
	Finished:   time.Hour,
	Waiting:    30 * time.Minute,
	InProgress: 2 * time.Hour,
}

// Store is the persistence collaborator consumed by the supervisor for
// crash recovery and by the sweeper. The engine writes a checkpoint
// snapshot after every successful mutation.
type Store interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context, id uuid.UUID) (models.Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, status string) ([]models.Snapshot, error)
	ListStale(ctx context.Context, cutoffs StaleCutoffs) ([]models.Snapshot, error)
}
