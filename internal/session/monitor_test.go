// internal/session/monitor_test.go
package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
)

type fakeTransport struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeTransport) CloseNow() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// monitorFixture wires a monitor with a short reconnect window and
// records every callback.
type monitorFixture struct {
	monitor  *Monitor
	statuses chan models.ConnectionStatus
	abandons chan uuid.UUID
}

func newMonitorFixture(t *testing.T, reconnect time.Duration) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		statuses: make(chan models.ConnectionStatus, 16),
		abandons: make(chan uuid.UUID, 16),
	}
	f.monitor = NewMonitor(testLogger(), reconnect,
		func(gameID, seatID uuid.UUID, status models.ConnectionStatus) {
			f.statuses <- status
		},
		func(gameID, seatID uuid.UUID) {
			f.abandons <- seatID
		})
	t.Cleanup(f.monitor.Stop)
	return f
}

func (f *monitorFixture) expectStatus(t *testing.T, want models.ConnectionStatus) {
	t.Helper()
	select {
	case got := <-f.statuses:
		require.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatalf("no %s status callback", want)
	}
}

func TestMonitorPlayerReportsConnected(t *testing.T) {
	f := newMonitorFixture(t, time.Minute)

	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})
	f.expectStatus(t, models.Connected)

	st, ok := f.monitor.Status("tok")
	require.True(t, ok)
	assert.Equal(t, models.Connected, st)
}

func TestMonitorHeartbeat(t *testing.T) {
	f := newMonitorFixture(t, time.Minute)
	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})

	assert.NoError(t, f.monitor.Heartbeat("tok"))
	err := f.monitor.Heartbeat("unknown")
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))
}

func TestMonitorDisconnectMarksSeat(t *testing.T) {
	f := newMonitorFixture(t, time.Minute)
	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})
	f.expectStatus(t, models.Connected)

	f.monitor.HandleDisconnect("tok")
	f.expectStatus(t, models.Disconnected)

	st, ok := f.monitor.Status("tok")
	require.True(t, ok)
	assert.Equal(t, models.Disconnected, st)
}

func TestMonitorReconnectBeforeTimeout(t *testing.T) {
	// The reconnect window is generous; a returning transport cancels
	// the pending purge and no abandonment ever fires.
	f := newMonitorFixture(t, 50*time.Millisecond)
	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})
	f.expectStatus(t, models.Connected)

	f.monitor.HandleDisconnect("tok")
	f.expectStatus(t, models.Disconnected)

	require.NoError(t, f.monitor.HandleReconnect("tok", &fakeTransport{}))
	f.expectStatus(t, models.Connected)

	// Wait out the original window: the cancelled timer must not purge
	// the rebound entry.
	select {
	case seat := <-f.abandons:
		t.Fatalf("unexpected abandonment of %s", seat)
	case <-time.After(150 * time.Millisecond):
	}

	st, ok := f.monitor.Status("tok")
	require.True(t, ok)
	assert.Equal(t, models.Connected, st)
}

func TestMonitorReconnectTimeoutPurgesAndNotifies(t *testing.T) {
	f := newMonitorFixture(t, 20*time.Millisecond)
	seatID := uuid.New()
	f.monitor.MonitorPlayer("tok", uuid.New(), seatID, &fakeTransport{})

	f.monitor.HandleDisconnect("tok")

	select {
	case got := <-f.abandons:
		assert.Equal(t, seatID, got)
	case <-time.After(time.Second):
		t.Fatal("reconnect timeout never reported abandonment")
	}

	_, ok := f.monitor.Status("tok")
	assert.False(t, ok, "the entry is purged")

	err := f.monitor.HandleReconnect("tok", &fakeTransport{})
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err), "late reconnects are refused")
}

func TestMonitorStalenessCheckFlagsSilentTransport(t *testing.T) {
	f := newMonitorFixture(t, time.Minute)
	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})
	f.expectStatus(t, models.Connected)

	// Age the last heartbeat past the window and force a check.
	f.monitor.SetClock(func() time.Time { return time.Now().Add(HeartbeatWindow + time.Second) })
	f.monitor.do(f.monitor.stalenessCheck)

	f.expectStatus(t, models.Disconnected)
}

func TestMonitorUnmonitorDropsEntry(t *testing.T) {
	f := newMonitorFixture(t, time.Minute)
	f.monitor.MonitorPlayer("tok", uuid.New(), uuid.New(), &fakeTransport{})

	f.monitor.Unmonitor("tok")

	_, ok := f.monitor.Status("tok")
	assert.False(t, ok)
	select {
	case <-f.abandons:
		t.Fatal("unmonitored seat must not be reported abandoned")
	case <-time.After(50 * time.Millisecond):
	}
}
