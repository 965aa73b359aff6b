// internal/session/monitor.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
)

const (
	// HeartbeatWindow is how long a transport may stay silent before
	// the staleness check flags it disconnected.
	HeartbeatWindow = 10 * time.Second
	// DefaultReconnectTimeout bounds how long a disconnected seat may
	// take to resume before it is treated as abandoned.
	DefaultReconnectTimeout = 60 * time.Second
)

// Transport is the minimal handle the monitor keeps on a seat's wire
// connection. The websocket layer satisfies it.
type Transport interface {
	CloseNow() error
}

// entry tracks one monitored seat keyed by its session token.
type entry struct {
	token     string
	gameID    uuid.UUID
	seatID    uuid.UUID
	transport Transport
	status    models.ConnectionStatus
	lastBeat  time.Time
	timerGen  int // invalidates a pending reconnect timer on rebind
}

// Monitor is the process-wide transport liveness actor. It marks seats
// disconnected on transport death or silence, arms a reconnect window,
// and reports abandonment to the owning game when the window lapses.
type Monitor struct {
	log       *logrus.Entry
	reconnect time.Duration
	onStatus  func(gameID, seatID uuid.UUID, status models.ConnectionStatus)
	onAbandon func(gameID, seatID uuid.UUID)

	mailbox chan func()
	done    chan struct{}
	stop    sync.Once

	// Actor-owned.
	entries map[string]*entry
	now     func() time.Time
}

// NewMonitor starts the monitor actor. onStatus is invoked on every
// connected/disconnected flip; onAbandon when a reconnect window fires
// unanswered. Both run outside the actor loop and may call back into
// game actors.
func NewMonitor(logger *logrus.Logger, reconnectTimeout time.Duration,
	onStatus func(gameID, seatID uuid.UUID, status models.ConnectionStatus),
	onAbandon func(gameID, seatID uuid.UUID)) *Monitor {
	if reconnectTimeout <= 0 {
		reconnectTimeout = DefaultReconnectTimeout
	}
	m := &Monitor{
		log:       logger.WithField("component", "connection_monitor"),
		reconnect: reconnectTimeout,
		onStatus:  onStatus,
		onAbandon: onAbandon,
		mailbox:   make(chan func(), 32),
		done:      make(chan struct{}),
		entries:   make(map[string]*entry),
		now:       time.Now,
	}
	go m.run(HeartbeatWindow / 2)
	return m
}

func (m *Monitor) run(checkEvery time.Duration) {
	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-ticker.C:
			m.stalenessCheck()
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) do(fn func()) {
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

func (m *Monitor) post(fn func()) {
	select {
	case m.mailbox <- fn:
	case <-m.done:
	}
}

// Stop terminates the actor.
func (m *Monitor) Stop() {
	m.stop.Do(func() { close(m.done) })
}

// SetClock overrides the time source. Tests only.
func (m *Monitor) SetClock(now func() time.Time) {
	m.do(func() { m.now = now })
}

// MonitorPlayer links a seat's liveness to its transport.
func (m *Monitor) MonitorPlayer(token string, gameID, seatID uuid.UUID, t Transport) {
	m.do(func() {
		m.entries[token] = &entry{
			token:     token,
			gameID:    gameID,
			seatID:    seatID,
			transport: t,
			status:    models.Connected,
			lastBeat:  m.now(),
		}
	})
	m.notifyStatus(gameID, seatID, models.Connected)
}

// Unmonitor drops a seat on explicit leave. The transport is not
// closed; the caller owns it.
func (m *Monitor) Unmonitor(token string) {
	m.do(func() {
		if e, ok := m.entries[token]; ok {
			e.timerGen++
			delete(m.entries, token)
		}
	})
}

// Heartbeat refreshes a seat's liveness stamp.
func (m *Monitor) Heartbeat(token string) error {
	var opErr error
	m.do(func() {
		e, ok := m.entries[token]
		if !ok {
			opErr = game.NewError(game.KindInvalidSession, "seat is not monitored", nil)
			return
		}
		e.lastBeat = m.now()
	})
	return opErr
}

// HandleDisconnect marks a seat disconnected and arms its reconnect
// window.
func (m *Monitor) HandleDisconnect(token string) {
	var flip *entry
	m.do(func() {
		e, ok := m.entries[token]
		if !ok || e.status == models.Disconnected {
			return
		}
		m.markDisconnected(e)
		flip = e
	})
	if flip != nil {
		m.notifyStatus(flip.gameID, flip.seatID, models.Disconnected)
	}
}

// HandleReconnect rebinds a returning seat to its new transport,
// cancelling the pending abandonment.
func (m *Monitor) HandleReconnect(token string, t Transport) error {
	var opErr error
	var flip *entry
	m.do(func() {
		e, ok := m.entries[token]
		if !ok {
			opErr = game.NewError(game.KindInvalidSession, "reconnect window has expired", nil)
			return
		}
		e.timerGen++ // a pending reconnect timer becomes a no-op
		e.transport = t
		e.status = models.Connected
		e.lastBeat = m.now()
		flip = e
	})
	if flip != nil {
		m.notifyStatus(flip.gameID, flip.seatID, models.Connected)
	}
	return opErr
}

// Status reports a seat's connection state.
func (m *Monitor) Status(token string) (models.ConnectionStatus, bool) {
	var st models.ConnectionStatus
	var ok bool
	m.do(func() {
		var e *entry
		e, ok = m.entries[token]
		if ok {
			st = e.status
		}
	})
	return st, ok
}

// markDisconnected runs inside the actor loop.
func (m *Monitor) markDisconnected(e *entry) {
	e.status = models.Disconnected
	e.timerGen++
	gen := e.timerGen
	token := e.token
	time.AfterFunc(m.reconnect, func() {
		m.post(func() { m.reconnectExpired(token, gen) })
	})
	m.log.WithFields(logrus.Fields{
		"game_id": e.gameID,
		"seat_id": e.seatID,
	}).Info("seat disconnected, reconnect window armed")
}

// reconnectExpired runs inside the actor loop when a reconnect window
// lapses. A stale gen means the seat already reconnected or left.
func (m *Monitor) reconnectExpired(token string, gen int) {
	e, ok := m.entries[token]
	if !ok || e.timerGen != gen || e.status != models.Disconnected {
		return
	}
	delete(m.entries, token)
	m.log.WithFields(logrus.Fields{
		"game_id": e.gameID,
		"seat_id": e.seatID,
	}).Warn("reconnect window expired, seat abandoned")
	if m.onAbandon != nil {
		go m.onAbandon(e.gameID, e.seatID)
	}
}

// stalenessCheck runs inside the actor loop and flags transports that
// went silent without a clean close.
func (m *Monitor) stalenessCheck() {
	cutoff := m.now().Add(-HeartbeatWindow)
	for _, e := range m.entries {
		if e.status == models.Connected && e.lastBeat.Before(cutoff) {
			m.markDisconnected(e)
			gameID, seatID := e.gameID, e.seatID
			go m.notifyStatus(gameID, seatID, models.Disconnected)
		}
	}
}

func (m *Monitor) notifyStatus(gameID, seatID uuid.UUID, status models.ConnectionStatus) {
	if m.onStatus != nil {
		m.onStatus(gameID, seatID, status)
	}
}
