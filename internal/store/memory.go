// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/models"
)

// Memory is an in-process Store used by tests and by servers running
// without a configured database.
type Memory struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]models.Snapshot
	clock func() time.Time
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		snaps: make(map[uuid.UUID]models.Snapshot),
		clock: time.Now,
	}
}

// SetClock overrides the timestamp source, for staleness tests.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func (m *Memory) Save(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.UpdatedAt = m.clock()
	m.snaps[snap.GameID] = snap
	return nil
}

func (m *Memory) Load(_ context.Context, id uuid.UUID) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func (m *Memory) ListByStatus(_ context.Context, status string) ([]models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Snapshot
	for _, snap := range m.snaps {
		if snap.Status == status {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *Memory) ListStale(_ context.Context, cutoffs StaleCutoffs) ([]models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	var out []models.Snapshot
	for _, snap := range m.snaps {
		var cutoff time.Duration
		switch snap.Status {
		case "finished", "corrupted":
			cutoff = cutoffs.Finished
		case "waiting":
			cutoff = cutoffs.Waiting
		default:
			cutoff = cutoffs.InProgress
		}
		if now.Sub(snap.UpdatedAt) >= cutoff {
			out = append(out, snap)
		}
	}
	return out, nil
}
