// internal/game/validator_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/models"
)

// riggedState builds a playing state with explicit hands and discard
// top, seat 0 active.
func riggedState(top card.Card, hands ...[]card.Card) *State {
	s := ringState(hands...)
	s.DiscardPile = []card.Card{top}
	return s
}

func TestValidatePlayRejectsUnknownPlayer(t *testing.T) {
	s := riggedState(card.New(card.Hearts, 9), nil, nil)
	stranger := models.Player{}

	err := s.ValidatePlay(stranger.ID, []card.Card{card.New(card.Hearts, 3)})
	assert.Equal(t, KindPlayerNotFound, KindOf(err))
}

func TestValidatePlayRejectsOutOfTurn(t *testing.T) {
	h := card.New(card.Hearts, 3)
	s := riggedState(card.New(card.Hearts, 9), nil, []card.Card{h})

	err := s.ValidatePlay(s.Players[1].ID, []card.Card{h})
	assert.Equal(t, KindNotYourTurn, KindOf(err))
}

func TestValidatePlayRejectsDuplicates(t *testing.T) {
	h := card.New(card.Hearts, 3)
	s := riggedState(card.New(card.Hearts, 9), []card.Card{h}, nil)

	err := s.ValidatePlay(s.Players[0].ID, []card.Card{h, h})
	assert.Equal(t, KindDuplicateCards, KindOf(err))
}

func TestValidatePlayRejectsCardsNotHeld(t *testing.T) {
	s := riggedState(card.New(card.Hearts, 9), []card.Card{card.New(card.Hearts, 3)}, nil)

	err := s.ValidatePlay(s.Players[0].ID, []card.Card{card.New(card.Spades, 3)})
	assert.Equal(t, KindCardsNotInHand, KindOf(err))
}

func TestValidatePlayRejectsMixedRanks(t *testing.T) {
	hand := []card.Card{card.New(card.Hearts, 3), card.New(card.Hearts, 4)}
	s := riggedState(card.New(card.Hearts, 9), hand, nil)

	err := s.ValidatePlay(s.Players[0].ID, hand)
	assert.Equal(t, KindInvalidStack, KindOf(err))
}

func TestValidatePlayRejectsNonFollowingCard(t *testing.T) {
	hand := []card.Card{card.New(card.Clubs, 3)}
	s := riggedState(card.New(card.Hearts, 9), hand, nil)

	err := s.ValidatePlay(s.Players[0].ID, hand)
	assert.Equal(t, KindInvalidPlay, KindOf(err))
}

func TestValidatePlayUnderSkipRequiresSevens(t *testing.T) {
	seven := card.New(card.Hearts, 7)
	nine := card.New(card.Hearts, 9)
	s := riggedState(card.New(card.Spades, 7), []card.Card{seven, nine}, nil)
	s.PendingSkips = 1

	err := s.ValidatePlay(s.Players[0].ID, []card.Card{nine})
	assert.Equal(t, KindInvalidCounter, KindOf(err), "only sevens answer a pending skip")

	assert.NoError(t, s.ValidatePlay(s.Players[0].ID, []card.Card{seven}))
}

func TestValidatePlayUnderAttackRequiresCounter(t *testing.T) {
	two := card.New(card.Clubs, 2)
	twoHearts := card.New(card.Hearts, 2)
	nine := card.New(card.Hearts, 9)
	s := riggedState(twoHearts, []card.Card{two, nine}, nil)
	s.PendingAttack = PendingAttack{Type: AttackTwos, Amount: 2}

	err := s.ValidatePlay(s.Players[0].ID, []card.Card{nine})
	assert.Equal(t, KindInvalidCounter, KindOf(err))

	assert.NoError(t, s.ValidatePlay(s.Players[0].ID, []card.Card{two}))
}

func TestValidateDrawMustPlayWhenHoldingFollower(t *testing.T) {
	hand := []card.Card{card.New(card.Hearts, 3)}
	s := riggedState(card.New(card.Hearts, 9), hand, nil)

	err := s.ValidateDraw(s.Players[0].ID, DrawCannotPlay)
	require.Equal(t, KindMustPlay, KindOf(err))

	ge := err.(*Error)
	assert.Contains(t, ge.Details, "eligible")
}

func TestValidateDrawScenarioSkipWithSevenInHand(t *testing.T) {
	// A seat facing pending skips that holds a seven must play it.
	seven := card.New(card.Diamonds, 7)
	s := riggedState(card.New(card.Hearts, 7), []card.Card{seven, card.New(card.Clubs, 4)}, nil)
	s.PendingSkips = 1

	err := s.ValidateDraw(s.Players[0].ID, DrawCannotPlay)
	assert.Equal(t, KindMustPlay, KindOf(err))
}

func TestValidateDrawSingleRejectedUnderAttack(t *testing.T) {
	// No counter in hand, attack pending: a cannot-play draw is refused
	// in favour of the full attack draw.
	s := riggedState(card.New(card.Hearts, 2), []card.Card{card.New(card.Clubs, 9)}, nil)
	s.PendingAttack = PendingAttack{Type: AttackTwos, Amount: 4}

	err := s.ValidateDraw(s.Players[0].ID, DrawCannotPlay)
	require.Equal(t, KindMustDraw, KindOf(err))

	assert.NoError(t, s.ValidateDraw(s.Players[0].ID, DrawAttack))
}

func TestValidateDrawAttackWithoutPendingAttack(t *testing.T) {
	s := riggedState(card.New(card.Hearts, 2), []card.Card{card.New(card.Clubs, 9)}, nil)

	err := s.ValidateDraw(s.Players[0].ID, DrawAttack)
	assert.Equal(t, KindInvalidStatus, KindOf(err))
}

func TestPlayableCardsUnderConstraints(t *testing.T) {
	seven := card.New(card.Hearts, 7)
	two := card.New(card.Clubs, 2)
	nine := card.New(card.Hearts, 9)
	s := riggedState(card.New(card.Hearts, 5), []card.Card{seven, two, nine}, nil)
	p := s.Players[0]

	// Unconstrained: hearts follow hearts.
	assert.ElementsMatch(t, []card.Card{seven, nine}, s.PlayableCards(p))

	s.PendingSkips = 1
	assert.ElementsMatch(t, []card.Card{seven}, s.PlayableCards(p))

	s.PendingSkips = 0
	s.PendingAttack = PendingAttack{Type: AttackTwos, Amount: 2}
	assert.ElementsMatch(t, []card.Card{two}, s.PlayableCards(p))
}

func TestPlayableCardsUnderNomination(t *testing.T) {
	clubFour := card.New(card.Clubs, 4)
	heartFour := card.New(card.Hearts, 4)
	s := riggedState(card.New(card.Hearts, card.Ace), []card.Card{clubFour, heartFour}, nil)
	nominated := card.Clubs
	s.NominatedSuit = &nominated

	assert.ElementsMatch(t, []card.Card{clubFour}, s.PlayableCards(s.Players[0]))
}
