// internal/engine/supervisor_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgillies/switchgame/internal/ai"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/store"
)

func newTestSupervisor(t *testing.T, st store.Store) *GameSupervisor {
	t.Helper()
	s := NewGameSupervisor(ai.New(), testLogger(), testConfig(), st, nil)
	t.Cleanup(s.Shutdown)
	return s
}

func TestSupervisorStartAndLookup(t *testing.T) {
	s := newTestSupervisor(t, nil)

	id := uuid.New()
	e, err := s.StartGame(id, humanSeats(2))
	require.NoError(t, err)
	assert.Equal(t, id, e.ID())

	got, ok := s.GetGame(id)
	require.True(t, ok)
	assert.Same(t, e, got)

	assert.Equal(t, []uuid.UUID{id}, s.ListGames())
}

func TestSupervisorIDCollision(t *testing.T) {
	s := newTestSupervisor(t, nil)

	id := uuid.New()
	_, err := s.StartGame(id, humanSeats(2))
	require.NoError(t, err)

	_, err = s.StartGame(id, humanSeats(2))
	assert.Equal(t, game.KindAlreadyStarted, game.KindOf(err))
}

func TestSupervisorStopGameDeregisters(t *testing.T) {
	s := newTestSupervisor(t, nil)

	id := uuid.New()
	e, err := s.StartGame(id, humanSeats(2))
	require.NoError(t, err)

	s.StopGame(id)

	_, ok := s.GetGame(id)
	assert.False(t, ok)
	assert.ErrorIs(t, e.Start(), ErrStopped)
}

func TestSupervisorRestoreGame(t *testing.T) {
	s := newTestSupervisor(t, nil)

	src, err := New(uuid.New(), humanSeats(2), ai.New(), testLogger(), testConfig())
	require.NoError(t, err)
	require.NoError(t, src.Start())
	snap, err := src.Snapshot()
	require.NoError(t, err)
	src.Stop()

	restored, err := s.RestoreGame(snap)
	require.NoError(t, err)

	got, ok := s.GetGame(snap.GameID)
	require.True(t, ok)
	assert.Same(t, restored, got)

	st, err := restored.Status()
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, st)
}

func TestSupervisorRestoreActiveFromStore(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	// Persist one playing game, then boot a fresh supervisor against
	// the same store.
	src, err := New(uuid.New(), humanSeats(2), ai.New(), testLogger(), testConfig(), WithStore(mem))
	require.NoError(t, err)
	require.NoError(t, src.Start())
	require.Eventually(t, func() bool {
		_, err := mem.Load(ctx, src.ID())
		return err == nil
	}, time.Second, 10*time.Millisecond)
	src.Stop()

	s := newTestSupervisor(t, mem)
	require.NoError(t, s.RestoreActive(ctx))

	_, ok := s.GetGame(src.ID())
	assert.True(t, ok, "the playing game came back after restart")
}

func TestSupervisorSweepRemovesStaleGames(t *testing.T) {
	mem := store.NewMemory()
	s := newTestSupervisor(t, mem)

	id := uuid.New()
	_, err := s.StartGame(id, humanSeats(2))
	require.NoError(t, err)

	// Starting play forces a checkpoint into the store.
	e, _ := s.GetGame(id)
	require.NoError(t, e.Start())

	ctx := context.Background()
	require.Eventually(t, func() bool {
		_, err := mem.Load(ctx, id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	// Age everything far past every cutoff.
	mem.SetClock(func() time.Time { return time.Now().Add(3 * time.Hour) })

	s.sweep(ctx)

	_, ok := s.GetGame(id)
	assert.False(t, ok, "the live actor is gone")
	_, err = mem.Load(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound, "the record is gone")
}
