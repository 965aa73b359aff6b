// internal/game/validator.go
package game

import (
	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/models"
)

// ValidatePlay checks a proposed play against the current state and
// returns a structured error on the first failed check. Checks run in
// a fixed order so callers see deterministic rejection kinds. It
// mutates nothing.
func (s *State) ValidatePlay(playerID uuid.UUID, cards []card.Card) error {
	p, idx := s.PlayerByID(playerID)
	if p == nil {
		return errf(KindPlayerNotFound, "player %s is not in this game", playerID)
	}
	if idx != s.CurrentPlayerIndex {
		return errf(KindNotYourTurn, "it is not %s's turn", p.Name)
	}
	if p.Status == models.StatusWon {
		return errf(KindPlayerAlreadyWon, "%s has already finished", p.Name)
	}

	seen := make(map[card.Card]int, len(cards))
	for _, c := range cards {
		seen[c]++
		if seen[c] > 1 {
			return errf(KindDuplicateCards, "card %s appears more than once in the play", c)
		}
	}
	for _, c := range cards {
		if !p.HasCard(c, 1) {
			return errf(KindCardsNotInHand, "card %s is not in hand", c)
		}
	}

	if !ValidStack(cards) {
		return errf(KindInvalidStack, "played cards must be a non-empty group of one rank")
	}

	if s.PendingSkips > 0 {
		for _, c := range cards {
			if !CanCounterSkip(c) {
				return errf(KindInvalidCounter, "a pending skip can only be countered with sevens")
			}
		}
		return nil
	}

	if !s.PendingAttack.None() {
		for _, c := range cards {
			if !CanCounterAttack(c, s.PendingAttack.Type) {
				return errf(KindInvalidCounter, "card %s does not counter a %s attack", c, s.PendingAttack.Type)
			}
		}
		return nil
	}

	top, ok := s.TopDiscard()
	if !ok {
		return errf(KindNoDiscardPile, "no discard pile to play against")
	}
	if !CanPlayCard(cards[0], top, s.NominatedSuit) {
		if s.NominatedSuit != nil {
			return errf(KindInvalidPlay, "card %s does not match the nominated suit %s", cards[0], *s.NominatedSuit)
		}
		return errf(KindInvalidPlay, "card %s does not match %s", cards[0], top)
	}
	return nil
}

// ValidateDraw checks a draw request. Drawing is rejected while the
// hand holds a card that is playable under the current constraints
// (mandatory-play), and a single-card draw is rejected while an attack
// is pending (the seat must draw the full amount instead).
func (s *State) ValidateDraw(playerID uuid.UUID, reason DrawReason) error {
	p, idx := s.PlayerByID(playerID)
	if p == nil {
		return errf(KindPlayerNotFound, "player %s is not in this game", playerID)
	}
	if idx != s.CurrentPlayerIndex {
		return errf(KindNotYourTurn, "it is not %s's turn", p.Name)
	}
	if p.Status == models.StatusWon {
		return errf(KindPlayerAlreadyWon, "%s has already finished", p.Name)
	}

	if eligible := s.PlayableCards(p); len(eligible) > 0 {
		return NewError(KindMustPlay, "hand contains a playable card", map[string]interface{}{
			"eligible": displayCards(eligible),
		})
	}

	switch reason {
	case DrawAttack:
		if s.PendingAttack.None() {
			return errf(KindInvalidStatus, "no pending attack to draw for")
		}
	case DrawCannotPlay:
		if !s.PendingAttack.None() {
			return NewError(KindMustDraw, "a pending attack must be drawn in full", map[string]interface{}{
				"attack": s.PendingAttack.Type,
				"amount": s.PendingAttack.Amount,
			})
		}
	default:
		return errf(KindInvalidStatus, "unknown draw reason %q", reason)
	}
	return nil
}

// PlayableCards returns the cards in p's hand that are legal to play
// under the current pending-skip/attack/nomination constraints.
func (s *State) PlayableCards(p *models.Player) []card.Card {
	var out []card.Card
	if s.PendingSkips > 0 {
		for _, c := range p.Hand {
			if CanCounterSkip(c) {
				out = append(out, c)
			}
		}
		return out
	}
	if !s.PendingAttack.None() {
		for _, c := range p.Hand {
			if CanCounterAttack(c, s.PendingAttack.Type) {
				out = append(out, c)
			}
		}
		return out
	}
	top, ok := s.TopDiscard()
	if !ok {
		return nil
	}
	for _, c := range p.Hand {
		if CanPlayCard(c, top, s.NominatedSuit) {
			out = append(out, c)
		}
	}
	return out
}

func displayCards(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Display()
	}
	return out
}
