// internal/engine/engine.go
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rgillies/switchgame/internal/cache"
	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
	"github.com/rgillies/switchgame/internal/store"
)

// ErrStopped is returned by operations on a terminated engine.
var ErrStopped = errors.New("game engine stopped")

// faultThreshold is the number of consecutive rejected operations that
// forces the game into the terminal corrupted state.
const faultThreshold = 10

// Strategy is the external AI decision collaborator the engine consumes
// for computer seats.
type Strategy interface {
	ScorePlay(cards []card.Card, hand []card.Card, difficulty models.Difficulty) float64
	ChooseSuit(hand []card.Card, difficulty models.Difficulty) card.Suit
	ChooseCounter(available []card.Card, attack game.AttackType, difficulty models.Difficulty) []card.Card
}

// Config tunes the engine's timers.
type Config struct {
	// ThinkDelay is the artificial delay before a computer seat moves.
	ThinkDelay time.Duration
	// TurnTimeout forces an automatic move for a stalled human seat.
	// Zero disables the timer.
	TurnTimeout time.Duration
	// LingerDelay is how long a finished game's actor stays up so late
	// subscribers can observe the final broadcast.
	LingerDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ThinkDelay == 0 {
		c.ThinkDelay = 800 * time.Millisecond
	}
	if c.LingerDelay == 0 {
		c.LingerDelay = 30 * time.Second
	}
	return c
}

// Engine is the serialized actor owning one game. Every operation goes
// through the mailbox, so no two operations on the same game ever
// interleave; unrelated games run fully in parallel.
type Engine struct {
	id       uuid.UUID
	log      *logrus.Entry
	cfg      Config
	state    *game.State
	strategy Strategy
	store    store.Store
	queue    *cache.Queue
	onExit   func(id uuid.UUID)

	mailbox chan func()
	done    chan struct{}
	stop    sync.Once

	// Everything below is touched only from inside the actor loop.
	subs      map[uuid.UUID]chan Event
	seq       int
	faults    int
	gen       int // bumps on every mutation; stale timer callbacks compare against it
	aiTimer   *time.Timer
	turnTimer *time.Timer
	announced bool // game_over broadcast sent
	exiting   bool
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithStore sets the checkpoint store.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithQueue sets the event history queue.
func WithQueue(q *cache.Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithOnExit registers the callback fired when the actor terminates.
func WithOnExit(fn func(id uuid.UUID)) Option {
	return func(e *Engine) { e.onExit = fn }
}

// New builds a waiting game from lobby seats and starts its actor.
func New(id uuid.UUID, seats []models.Seat, strategy Strategy, logger *logrus.Logger, cfg Config, opts ...Option) (*Engine, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	state, err := game.NewState(id, seats, rng)
	if err != nil {
		return nil, err
	}
	return fromState(state, strategy, logger, cfg, opts...), nil
}

// NewFromSnapshot reconstructs an actor from a persisted snapshot,
// re-arming the computer-player schedule if the game was restored
// mid-AI-turn.
func NewFromSnapshot(snap models.Snapshot, strategy Strategy, logger *logrus.Logger, cfg Config, opts ...Option) (*Engine, error) {
	var state game.State
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot for game %s: %w", snap.GameID, err)
	}
	state.SetRand(rand.New(rand.NewSource(time.Now().UnixNano())))
	e := fromState(&state, strategy, logger, cfg, opts...)
	e.post(func() { e.scheduleNext() })
	return e, nil
}

func fromState(state *game.State, strategy Strategy, logger *logrus.Logger, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		id:       state.ID,
		log:      logger.WithField("game_id", state.ID),
		cfg:      cfg.withDefaults(),
		state:    state,
		strategy: strategy,
		mailbox:  make(chan func(), 32),
		done:     make(chan struct{}),
		subs:     make(map[uuid.UUID]chan Event),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.mailbox:
			fn()
		case <-e.done:
			// The loop owns subs, so closing here cannot race a
			// broadcast or Unsubscribe.
			for id, ch := range e.subs {
				delete(e.subs, id)
				close(ch)
			}
			return
		}
	}
}

// ID returns the game id.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// do runs fn inside the actor and blocks until it completes.
func (e *Engine) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case e.mailbox <- func() { fn(); close(ran) }:
	case <-e.done:
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// post queues fn without waiting. Used by timer callbacks, which run in
// their own goroutine.
func (e *Engine) post(fn func()) {
	select {
	case e.mailbox <- fn:
	case <-e.done:
	}
}

// Stop terminates the actor immediately.
func (e *Engine) Stop() {
	e.stop.Do(func() {
		close(e.done)
		if e.onExit != nil {
			e.onExit(e.id)
		}
	})
}

// --- public operations (each totally ordered through the mailbox) ---

// Start deals and begins play.
func (e *Engine) Start() error {
	var opErr error
	if err := e.do(func() { opErr = e.startLocked() }); err != nil {
		return err
	}
	return opErr
}

// PlayCards applies one play for a seat.
func (e *Engine) PlayCards(seat uuid.UUID, cards []card.Card, chosenSuit *card.Suit) error {
	var opErr error
	if err := e.do(func() { opErr = e.playLocked(seat, cards, chosenSuit, EventCardsPlayed) }); err != nil {
		return err
	}
	return opErr
}

// DrawCards applies a draw and returns what was drawn.
func (e *Engine) DrawCards(seat uuid.UUID, reason game.DrawReason) ([]card.Card, error) {
	var drawn []card.Card
	var opErr error
	if err := e.do(func() { drawn, opErr = e.drawLocked(seat, reason) }); err != nil {
		return nil, err
	}
	return drawn, opErr
}

// AddPlayer seats a new player in a waiting game.
func (e *Engine) AddPlayer(seat models.Seat) error {
	var opErr error
	if err := e.do(func() { opErr = e.addPlayerLocked(seat) }); err != nil {
		return err
	}
	return opErr
}

// RemovePlayer takes a seat out of the game: removed outright while
// waiting, degraded to computer control once play has started.
func (e *Engine) RemovePlayer(seat uuid.UUID) error {
	var opErr error
	if err := e.do(func() { opErr = e.removePlayerLocked(seat, "left") }); err != nil {
		return err
	}
	return opErr
}

// HandleAbandon is the connection monitor's notification that a seat's
// reconnection window expired unanswered.
func (e *Engine) HandleAbandon(seat uuid.UUID) error {
	var opErr error
	if err := e.do(func() { opErr = e.removePlayerLocked(seat, "reconnect_timeout") }); err != nil {
		return err
	}
	return opErr
}

// SetConnection records the monitor's view of a seat's transport.
func (e *Engine) SetConnection(seat uuid.UUID, status models.ConnectionStatus) error {
	return e.do(func() {
		if p, _ := e.state.PlayerByID(seat); p != nil {
			p.Connection = status
			e.faults = 0
		}
	})
}

// Subscribe registers an event listener. The returned channel is closed
// on Unsubscribe or engine termination; slow consumers lose events
// rather than stalling the actor.
func (e *Engine) Subscribe() (uuid.UUID, <-chan Event, error) {
	id := uuid.New()
	ch := make(chan Event, 64)
	if err := e.do(func() { e.subs[id] = ch }); err != nil {
		return uuid.Nil, nil, err
	}
	return id, ch, nil
}

// Unsubscribe removes a listener.
func (e *Engine) Unsubscribe(id uuid.UUID) {
	_ = e.do(func() {
		if ch, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	})
}

// View returns the redacted state for one requesting seat.
func (e *Engine) View(forSeat uuid.UUID) (StateView, error) {
	var view StateView
	if err := e.do(func() { view = buildView(e.state, forSeat) }); err != nil {
		return StateView{}, err
	}
	return view, nil
}

// Snapshot returns the full serialized state, used for checkpoints and
// diagnostics.
func (e *Engine) Snapshot() (models.Snapshot, error) {
	var snap models.Snapshot
	var opErr error
	if err := e.do(func() { snap, opErr = e.snapshotLocked() }); err != nil {
		return models.Snapshot{}, err
	}
	return snap, opErr
}

// Status reports the game's lifecycle status.
func (e *Engine) Status() (game.Status, error) {
	var st game.Status
	if err := e.do(func() { st = e.state.Status }); err != nil {
		return "", err
	}
	return st, nil
}

// --- actor-side implementations ---

func (e *Engine) startLocked() error {
	if err := e.state.Start(); err != nil {
		e.fault(err)
		return err
	}
	seats := make([]string, len(e.state.Players))
	for i, p := range e.state.Players {
		seats[i] = p.Name
	}
	e.broadcast(EventGameStarted, map[string]interface{}{"seats": seats})
	e.afterMutation()
	return nil
}

func (e *Engine) playLocked(seat uuid.UUID, cards []card.Card, chosenSuit *card.Suit, evType EventType) error {
	if err := e.state.Play(seat, cards, chosenSuit); err != nil {
		e.fault(err)
		return err
	}
	payload := map[string]interface{}{
		"seat":  seat,
		"cards": displayCards(cards),
	}
	if chosenSuit != nil {
		payload["nominated_suit"] = chosenSuit.String()
	}
	e.broadcast(evType, payload)
	e.afterMutation()
	return nil
}

func (e *Engine) drawLocked(seat uuid.UUID, reason game.DrawReason) ([]card.Card, error) {
	drawn, err := e.state.Draw(seat, reason)
	if err != nil {
		e.fault(err)
		return nil, err
	}
	e.broadcast(EventCardsDrawn, map[string]interface{}{
		"seat":   seat,
		"count":  len(drawn),
		"reason": string(reason),
	})
	e.afterMutation()
	return drawn, nil
}

func (e *Engine) addPlayerLocked(seat models.Seat) error {
	if e.state.Status != game.StatusWaiting {
		err := game.NewError(game.KindCannotJoin, "game has already started", nil)
		e.fault(err)
		return err
	}
	if len(e.state.Players) >= 8 {
		err := game.NewError(game.KindCannotJoin, "game is full", nil)
		e.fault(err)
		return err
	}
	if p, _ := e.state.PlayerByID(seat.ID); p != nil {
		err := game.NewError(game.KindCannotJoin, "seat already taken", nil)
		e.fault(err)
		return err
	}
	e.state.Players = append(e.state.Players, &models.Player{
		ID:         seat.ID,
		Name:       seat.Name,
		Hand:       []card.Card{},
		Status:     models.StatusPlaying,
		Type:       seat.Type,
		Difficulty: seat.Difficulty,
		Connection: models.Connected,
	})
	e.broadcast(EventPlayerJoined, map[string]interface{}{"seat": seat.ID, "name": seat.Name})
	e.afterMutation()
	return nil
}

func (e *Engine) removePlayerLocked(seat uuid.UUID, reason string) error {
	p, idx := e.state.PlayerByID(seat)
	if p == nil {
		err := game.NewError(game.KindPlayerNotFound, "seat is not in this game", nil)
		e.fault(err)
		return err
	}
	switch e.state.Status {
	case game.StatusWaiting:
		e.state.Players = append(e.state.Players[:idx], e.state.Players[idx+1:]...)
	case game.StatusPlaying:
		// Mid-game departures degrade to computer control so the ring
		// and card conservation stay intact.
		p.Type = models.TypeAI
		p.Connection = models.Disconnected
		if p.Difficulty == "" {
			p.Difficulty = models.DifficultyNormal
		}
	default:
		err := game.NewError(game.KindInvalidStatus, "game is over", nil)
		e.fault(err)
		return err
	}
	e.broadcast(EventPlayerLeft, map[string]interface{}{"seat": seat, "reason": reason})
	e.afterMutation()
	return nil
}

// fault tracks consecutive rejections; past the threshold the game is
// forced into the terminal corrupted state.
func (e *Engine) fault(err error) {
	e.faults++
	e.log.WithError(err).WithField("faults", e.faults).Warn("operation rejected")
	if e.faults > faultThreshold {
		e.corrupt("repeated operation faults")
	}
}

// corrupt is terminal: no further mutation, no computer auto-play. The
// actor stays up for diagnostics until the supervisor stops it.
func (e *Engine) corrupt(reason string) {
	if e.state.Status == game.StatusCorrupted {
		return
	}
	e.log.WithField("reason", reason).Error("game corrupted")
	e.state.Status = game.StatusCorrupted
	e.gen++
	e.cancelTimers()
	e.broadcast(EventGameOver, map[string]interface{}{
		"status": string(game.StatusCorrupted),
		"reason": reason,
	})
	e.persist()
}

// afterMutation runs the post-success bookkeeping shared by every
// mutating operation: reset the fault counter, invalidate outstanding
// timers, verify card conservation, checkpoint, announce a finish and
// arm the next schedule.
func (e *Engine) afterMutation() {
	e.faults = 0
	e.gen++
	e.cancelTimers()

	if err := e.state.ValidateIntegrity(); err != nil {
		e.corrupt(err.Error())
		return
	}

	if e.state.Status == game.StatusFinished && !e.announced {
		e.announced = true
		e.broadcast(EventGameOver, map[string]interface{}{
			"status":  string(game.StatusFinished),
			"winners": e.state.Winners,
		})
	}

	e.persist()
	e.scheduleNext()
}

func (e *Engine) cancelTimers() {
	if e.aiTimer != nil {
		e.aiTimer.Stop()
		e.aiTimer = nil
	}
	if e.turnTimer != nil {
		e.turnTimer.Stop()
		e.turnTimer = nil
	}
}

// scheduleNext arms whichever timer the new state calls for: the AI
// thinking delay when the active seat is computer-controlled, the turn
// timeout for humans, or the deferred self-termination after a finish.
func (e *Engine) scheduleNext() {
	switch e.state.Status {
	case game.StatusFinished:
		e.scheduleExit()
		return
	case game.StatusPlaying:
	default:
		return
	}

	p := e.state.CurrentPlayer()
	if p == nil {
		return
	}
	gen := e.gen
	if p.Type == models.TypeAI {
		e.aiTimer = time.AfterFunc(e.cfg.ThinkDelay, func() {
			e.post(func() {
				if e.gen != gen || e.state.Status != game.StatusPlaying {
					return // state advanced before the timer fired
				}
				e.autoMove(EventAIPlayed)
			})
		})
		return
	}
	if e.cfg.TurnTimeout > 0 {
		seat := p.ID
		e.turnTimer = time.AfterFunc(e.cfg.TurnTimeout, func() {
			e.post(func() {
				if e.gen != gen || e.state.Status != game.StatusPlaying {
					return
				}
				e.broadcast(EventPlayerTimeout, map[string]interface{}{"seat": seat})
				e.autoMove(EventCardsPlayed)
			})
		})
	}
}

func (e *Engine) scheduleExit() {
	if e.exiting {
		return
	}
	e.exiting = true
	time.AfterFunc(e.cfg.LingerDelay, func() {
		e.Stop()
	})
}

// autoMove computes and applies a move for the current seat via the
// strategy collaborator. Used for computer seats and for timed-out
// humans.
func (e *Engine) autoMove(evType EventType) {
	p := e.state.CurrentPlayer()
	if p == nil {
		return
	}
	seat := p.ID
	diff := p.Difficulty
	if diff == "" {
		diff = models.DifficultyNormal
	}

	playable := e.state.PlayableCards(p)

	if !e.state.PendingAttack.None() {
		if len(playable) == 0 {
			if _, err := e.drawLocked(seat, game.DrawAttack); err != nil {
				e.log.WithError(err).Warn("auto attack draw failed")
			}
			return
		}
		counter := e.strategy.ChooseCounter(playable, e.state.PendingAttack.Type, diff)
		if len(counter) == 0 {
			counter = playable[:1]
		}
		if err := e.playLocked(seat, counter, nil, evType); err != nil {
			e.log.WithError(err).Warn("auto counter failed")
		}
		return
	}

	if e.state.PendingSkips > 0 {
		// The walk only lands on a seat holding sevens; shed them all.
		if err := e.playLocked(seat, playable, nil, evType); err != nil {
			e.log.WithError(err).Warn("auto skip counter failed")
		}
		return
	}

	if len(playable) == 0 {
		if _, err := e.drawLocked(seat, game.DrawCannotPlay); err != nil {
			e.log.WithError(err).Warn("auto draw failed")
		}
		return
	}

	group := e.bestGroup(p, playable, diff)
	var chosenSuit *card.Suit
	if group[0].Rank == card.Ace {
		suit := e.strategy.ChooseSuit(p.Hand, diff)
		chosenSuit = &suit
	}
	if err := e.playLocked(seat, group, chosenSuit, evType); err != nil {
		e.log.WithError(err).Warn("auto play failed")
	}
}

// bestGroup expands each playable card into its full same-rank group
// (playable card first, so the follow check passes) and keeps the
// highest-scoring one.
func (e *Engine) bestGroup(p *models.Player, playable []card.Card, diff models.Difficulty) []card.Card {
	var best []card.Card
	bestScore := 0.0
	seenRank := make(map[card.Rank]bool)
	for _, lead := range playable {
		if seenRank[lead.Rank] {
			continue
		}
		seenRank[lead.Rank] = true
		group := []card.Card{lead}
		for _, c := range p.Hand {
			if c.Rank == lead.Rank && c != lead {
				group = append(group, c)
			}
		}
		score := e.strategy.ScorePlay(group, p.Hand, diff)
		if best == nil || score > bestScore {
			best = group
			bestScore = score
		}
	}
	return best
}

func (e *Engine) snapshotLocked() (models.Snapshot, error) {
	data, err := json.Marshal(e.state)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("marshal game state: %w", err)
	}
	return models.Snapshot{
		GameID:    e.id,
		Status:    string(e.state.Status),
		UpdatedAt: time.Now(),
		State:     data,
	}, nil
}

// persist writes a checkpoint asynchronously so a slow store never
// stalls the actor.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	snap, err := e.snapshotLocked()
	if err != nil {
		e.log.WithError(err).Error("snapshot failed")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.store.Save(ctx, snap); err != nil {
			e.log.WithError(err).Error("checkpoint save failed")
		}
	}()
}

// broadcast fans one event out to subscribers and mirrors it to the
// history queue.
func (e *Engine) broadcast(evType EventType, payload map[string]interface{}) {
	e.seq++
	ev := Event{Type: evType, GameID: e.id, Seq: e.seq, Payload: payload}
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.log.WithField("subscriber", id).Warn("dropping event for slow subscriber")
		}
	}
	if e.queue != nil {
		record := cache.GameEventRecord{
			GameID:    e.id,
			Seq:       e.seq,
			EventType: string(evType),
			Payload:   payload,
			Timestamp: time.Now().UnixMilli(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := e.queue.Publish(ctx, record); err != nil {
				e.log.WithError(err).Warn("event queue publish failed")
			}
		}()
	}
}

func displayCards(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Display()
	}
	return out
}
