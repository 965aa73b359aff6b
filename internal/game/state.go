// internal/game/state.go
package game

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/models"
)

// Status is the lifecycle state of one game.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusCorrupted Status = "corrupted"
)

// DrawReason distinguishes the two draw operations.
type DrawReason string

const (
	// DrawCannotPlay draws a single card and ends the turn.
	DrawCannotPlay DrawReason = "cannot_play"
	// DrawAttack draws the full pending attack amount and clears it
	// without ending the turn.
	DrawAttack DrawReason = "attack"
)

// State is the complete rule-level state of one game. It owns no
// concurrency; all mutation is serialized by the engine actor that
// wraps it. Operations validate fully before mutating, so a rejection
// leaves the state untouched.
type State struct {
	ID                 uuid.UUID        `json:"id"`
	Players            []*models.Player `json:"players"`
	Deck               []card.Card      `json:"deck"`
	DiscardPile        []card.Card      `json:"discard_pile"` // last element = most recent
	CurrentPlayerIndex int              `json:"current_player_index"`
	Direction          Direction        `json:"direction"`
	PendingAttack      PendingAttack    `json:"pending_attack"`
	PendingSkips       int              `json:"pending_skips"`
	NominatedSuit      *card.Suit       `json:"nominated_suit,omitempty"`
	Winners            []uuid.UUID      `json:"winners"`
	Status             Status           `json:"status"`
	ExpectedTotalCards int              `json:"expected_total_cards"`

	rng *rand.Rand
}

// NewState builds a waiting game from lobby seats. Seat counts outside
// 2..8 are a construction-time error.
func NewState(id uuid.UUID, seats []models.Seat, rng *rand.Rand) (*State, error) {
	if len(seats) < 2 || len(seats) > 8 {
		return nil, errf(KindInvalidStatus, "need 2-8 seats, got %d", len(seats))
	}
	s := &State{
		ID:        id,
		Direction: Clockwise,
		Status:    StatusWaiting,
		rng:       rng,
	}
	for _, seat := range seats {
		s.Players = append(s.Players, &models.Player{
			ID:         seat.ID,
			Name:       seat.Name,
			Hand:       []card.Card{},
			Status:     models.StatusPlaying,
			Type:       seat.Type,
			Difficulty: seat.Difficulty,
			Connection: models.Connected,
		})
	}
	s.Deck = card.NewShuffledDeck(rng)
	s.ExpectedTotalCards = len(s.Deck)
	return s, nil
}

// SetRand installs the shuffle source, used after restoring a snapshot.
func (s *State) SetRand(rng *rand.Rand) {
	s.rng = rng
}

// handSize returns the per-seat deal count: 7 for 2-5 seats, 6 for 6-7,
// 5 for 8. Seat counts were validated at construction.
func handSize(seats int) int {
	switch {
	case seats <= 5:
		return 7
	case seats <= 7:
		return 6
	default:
		return 5
	}
}

// Start deals every seat its hand, flips the first discard card and
// activates the first seat. Only a waiting game can start.
func (s *State) Start() error {
	if s.Status != StatusWaiting {
		return errf(KindInvalidStatus, "game is %s, not waiting", s.Status)
	}
	per := handSize(len(s.Players))
	for _, p := range s.Players {
		p.Hand = append(p.Hand, s.Deck[:per]...)
		s.Deck = s.Deck[per:]
	}
	s.DiscardPile = append(s.DiscardPile, s.Deck[0])
	s.Deck = s.Deck[1:]
	s.CurrentPlayerIndex = 0
	s.Status = StatusPlaying
	return nil
}

// TopDiscard returns the most recently discarded card.
func (s *State) TopDiscard() (card.Card, bool) {
	if len(s.DiscardPile) == 0 {
		return card.Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// PlayerByID returns the seat and its ring index, or (nil, -1).
func (s *State) PlayerByID(id uuid.UUID) (*models.Player, int) {
	for i, p := range s.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// CurrentPlayer returns the active seat.
func (s *State) CurrentPlayer() *models.Player {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return s.Players[s.CurrentPlayerIndex]
}

// Play validates and applies one play: remove the cards from the hand,
// push them onto the discard pile in play order, fold their effects,
// detect a win and advance the turn, all in one transaction. A
// rejection leaves the state untouched.
func (s *State) Play(playerID uuid.UUID, cards []card.Card, chosenSuit *card.Suit) error {
	if s.Status != StatusPlaying {
		return errf(KindInvalidStatus, "game is %s", s.Status)
	}
	if err := s.ValidatePlay(playerID, cards); err != nil {
		return err
	}

	p, idx := s.PlayerByID(playerID)
	for _, c := range cards {
		s.removeFromHand(p, c)
	}
	s.DiscardPile = append(s.DiscardPile, cards...)

	// A nomination constrains exactly one resolved turn: any follow-up
	// play consumes it unless that play installs a new one.
	if cards[0].Rank != card.Ace {
		s.NominatedSuit = nil
	}
	s.ApplyEffects(cards, chosenSuit)

	s.CheckWinner(idx)
	if s.ShouldEnd() {
		s.Status = StatusFinished
		return nil
	}
	s.AdvanceTurn()
	return nil
}

// Draw validates and applies a draw. DrawCannotPlay takes one card and
// ends the turn; DrawAttack takes the full pending amount, clears the
// attack and leaves the same seat active. The drawn cards are returned
// for event reporting.
func (s *State) Draw(playerID uuid.UUID, reason DrawReason) ([]card.Card, error) {
	if s.Status != StatusPlaying {
		return nil, errf(KindInvalidStatus, "game is %s", s.Status)
	}
	if err := s.ValidateDraw(playerID, reason); err != nil {
		return nil, err
	}

	p, _ := s.PlayerByID(playerID)
	if reason == DrawAttack {
		drawn := s.drawCards(s.PendingAttack.Amount)
		p.Hand = append(p.Hand, drawn...)
		s.PendingAttack = PendingAttack{}
		return drawn, nil
	}

	drawn := s.drawCards(1)
	p.Hand = append(p.Hand, drawn...)
	s.NominatedSuit = nil
	s.AdvanceTurn()
	return drawn, nil
}

// drawCards takes up to n cards off the deck, reshuffling the discard
// pile (minus its top card) back in when the deck runs dry. If the
// combined piles still cannot satisfy n, the draw is partial.
func (s *State) drawCards(n int) []card.Card {
	drawn := make([]card.Card, 0, n)
	for len(drawn) < n {
		if len(s.Deck) == 0 && !s.reshuffleDiscard() {
			break
		}
		drawn = append(drawn, s.Deck[0])
		s.Deck = s.Deck[1:]
	}
	return drawn
}

// reshuffleDiscard folds everything but the top discard card back into
// the deck and shuffles. Returns false when there is nothing to
// reshuffle.
func (s *State) reshuffleDiscard() bool {
	if len(s.DiscardPile) <= 1 {
		return false
	}
	top := s.DiscardPile[len(s.DiscardPile)-1]
	s.Deck = append(s.Deck, s.DiscardPile[:len(s.DiscardPile)-1]...)
	s.DiscardPile = []card.Card{top}

	shuffle := rand.Shuffle
	if s.rng != nil {
		shuffle = s.rng.Shuffle
	}
	shuffle(len(s.Deck), func(i, j int) {
		s.Deck[i], s.Deck[j] = s.Deck[j], s.Deck[i]
	})
	return true
}

func (s *State) removeFromHand(p *models.Player, c card.Card) {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return
		}
	}
}

// CountCards returns deck + discard + all hands.
func (s *State) CountCards() int {
	total := len(s.Deck) + len(s.DiscardPile)
	for _, p := range s.Players {
		total += len(p.Hand)
	}
	return total
}

// ValidateIntegrity re-checks the card-conservation invariant.
func (s *State) ValidateIntegrity() error {
	if got := s.CountCards(); got != s.ExpectedTotalCards {
		return NewError(KindIntegrity, "card count mismatch", map[string]interface{}{
			"expected": s.ExpectedTotalCards,
			"got":      got,
		})
	}
	return nil
}
