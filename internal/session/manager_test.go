// internal/session/manager_test.go
package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgillies/switchgame/internal/game"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	InitKeys()
	m := NewManager(testLogger())
	t.Cleanup(m.Stop)
	return m
}

func TestManagerCreateAndValidate(t *testing.T) {
	m := newTestManager(t)
	gameID, seatID := uuid.New(), uuid.New()

	token, err := m.Create(gameID, seatID, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, gameID, sess.GameID)
	assert.Equal(t, seatID, sess.SeatID)
	assert.Equal(t, "alice", sess.Name)
}

func TestManagerValidateRefreshesActivity(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(uuid.New(), uuid.New(), "bob")
	require.NoError(t, err)

	first, err := m.Validate(token)
	require.NoError(t, err)

	// Simulate near-expiry, then validate to refresh.
	base := time.Now()
	m.SetClock(func() time.Time { return base.Add(IdleExpiry - time.Second) })
	refreshed, err := m.Validate(token)
	require.NoError(t, err)
	assert.True(t, refreshed.LastActivity.After(first.LastActivity))

	// The refresh pushed expiry out: another near-expiry window later
	// the session is still alive.
	m.SetClock(func() time.Time { return base.Add(2*IdleExpiry - 2*time.Second) })
	_, err = m.Validate(token)
	assert.NoError(t, err)
}

func TestManagerIdleSessionExpires(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(uuid.New(), uuid.New(), "carol")
	require.NoError(t, err)

	m.SetClock(func() time.Time { return time.Now().Add(IdleExpiry + time.Second) })

	_, err = m.Validate(token)
	require.Equal(t, game.KindSessionExpired, game.KindOf(err))

	// The expired entry is gone; a retry is now unknown rather than
	// expired.
	m.SetClock(time.Now)
	_, err = m.Validate(token)
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))
}

func TestManagerRejectsGarbageToken(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Validate("not-a-token")
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))
}

func TestManagerRejectsForgedToken(t *testing.T) {
	m := newTestManager(t)

	// A token signed under a different key pair.
	forged, err := signToken(uuid.NewString(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	InitKeys() // rotate keys out from under the token

	_, err = m.Validate(forged)
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))
}

func TestManagerTouchKeepsSessionAlive(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(uuid.New(), uuid.New(), "frank")
	require.NoError(t, err)

	// A heartbeat lands just inside each idle window. Across several
	// windows the session must survive without any Validate call.
	base := time.Now()
	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i)*IdleExpiry - time.Second)
		m.SetClock(func() time.Time { return at })
		m.Touch(token)
		m.do(m.sweep)
	}

	_, err = m.Validate(token)
	assert.NoError(t, err, "touched session must outlive the idle window")
}

func TestManagerTouchIgnoresGarbageToken(t *testing.T) {
	m := newTestManager(t)
	m.Touch("not-a-token")
	assert.Zero(t, m.Count())
}

func TestManagerRejectsMismatchedBindings(t *testing.T) {
	m := newTestManager(t)
	gameID, seatID := uuid.New(), uuid.New()
	token, err := m.Create(gameID, seatID, "grace")
	require.NoError(t, err)

	sub, _, _, err := verifyToken(token)
	require.NoError(t, err)

	// Same session id, signed for a different game.
	crossed, err := signToken(sub, uuid.NewString(), seatID.String())
	require.NoError(t, err)

	_, err = m.Validate(crossed)
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))

	// The genuine token is unaffected.
	_, err = m.Validate(token)
	assert.NoError(t, err)
}

func TestManagerDestroy(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(uuid.New(), uuid.New(), "dave")
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	m.Destroy(token)

	assert.Zero(t, m.Count())
	_, err = m.Validate(token)
	assert.Equal(t, game.KindInvalidSession, game.KindOf(err))
}

func TestManagerSweepPurges(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(uuid.New(), uuid.New(), "erin")
	require.NoError(t, err)

	m.SetClock(func() time.Time { return time.Now().Add(IdleExpiry + time.Minute) })
	m.do(m.sweep)

	assert.Zero(t, m.Count())
}
