// internal/session/manager.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/game"
)

// IdleExpiry is how long a session may go without activity before
// validation fails with session_expired.
const IdleExpiry = 5 * time.Minute

// Session binds a reconnection token to one seat in one game.
type Session struct {
	Token        string    `json:"token"`
	GameID       uuid.UUID `json:"game_id"`
	SeatID       uuid.UUID `json:"seat_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
}

// Manager is the process-wide session registry: one actor, initialized
// at startup, mutated only through its mailbox. Callers hold onto it
// for the process's lifetime.
type Manager struct {
	log     *logrus.Entry
	mailbox chan func()
	done    chan struct{}
	stop    sync.Once

	// Actor-owned; never touched outside the loop.
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager starts the session actor with its periodic expiry sweep.
func NewManager(logger *logrus.Logger) *Manager {
	m := &Manager{
		log:      logger.WithField("component", "session_manager"),
		mailbox:  make(chan func(), 32),
		done:     make(chan struct{}),
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	go m.run(time.Minute)
	return m
}

func (m *Manager) run(sweepEvery time.Duration) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-ticker.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) do(fn func()) {
	ran := make(chan struct{})
	select {
	case m.mailbox <- func() { fn(); close(ran) }:
	case <-m.done:
		return
	}
	select {
	case <-ran:
	case <-m.done:
	}
}

// Stop terminates the actor.
func (m *Manager) Stop() {
	m.stop.Do(func() { close(m.done) })
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.do(func() { m.now = now })
}

// Create mints a session for a seat joining a game and returns its
// signed token.
func (m *Manager) Create(gameID, seatID uuid.UUID, name string) (string, error) {
	sessionID := uuid.NewString()
	token, err := signToken(sessionID, gameID.String(), seatID.String())
	if err != nil {
		return "", err
	}
	m.do(func() {
		m.sessions[sessionID] = &Session{
			Token:        token,
			GameID:       gameID,
			SeatID:       seatID,
			Name:         name,
			Status:       "active",
			LastActivity: m.now(),
		}
	})
	return token, nil
}

// Validate checks a token, refreshes the session's activity stamp and
// returns a copy of the session. Unknown tokens and tokens whose signed
// game/seat bindings disagree with the session record fail
// invalid_session; idle sessions fail session_expired and are dropped.
func (m *Manager) Validate(token string) (Session, error) {
	sessionID, gameID, seatID, err := verifyToken(token)
	if err != nil {
		return Session{}, game.NewError(game.KindInvalidSession, "token is not valid", nil)
	}
	var out Session
	var opErr error
	m.do(func() {
		s, ok := m.sessions[sessionID]
		if !ok {
			opErr = game.NewError(game.KindInvalidSession, "no such session", nil)
			return
		}
		if s.GameID.String() != gameID || s.SeatID.String() != seatID {
			opErr = game.NewError(game.KindInvalidSession, "token bindings do not match the session", nil)
			return
		}
		if m.now().Sub(s.LastActivity) >= IdleExpiry {
			delete(m.sessions, sessionID)
			opErr = game.NewError(game.KindSessionExpired, "session idle too long", nil)
			return
		}
		s.LastActivity = m.now()
		out = *s
	})
	return out, opErr
}

// Touch refreshes a live session's activity stamp. Heartbeats use it so
// a seat playing over an open socket never idles out. Unknown or
// unverifiable tokens are ignored.
func (m *Manager) Touch(token string) {
	sessionID, _, _, err := verifyToken(token)
	if err != nil {
		return
	}
	m.do(func() {
		if s, ok := m.sessions[sessionID]; ok {
			s.LastActivity = m.now()
		}
	})
}

// Destroy drops a session on explicit leave.
func (m *Manager) Destroy(token string) {
	sessionID, _, _, err := verifyToken(token)
	if err != nil {
		return
	}
	m.do(func() { delete(m.sessions, sessionID) })
}

// Count reports the live session total.
func (m *Manager) Count() int {
	var n int
	m.do(func() { n = len(m.sessions) })
	return n
}

// sweep runs inside the actor loop.
func (m *Manager) sweep() {
	cutoff := m.now().Add(-IdleExpiry)
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			m.log.WithFields(logrus.Fields{
				"game_id": s.GameID,
				"seat_id": s.SeatID,
			}).Info("expired session purged")
		}
	}
}
