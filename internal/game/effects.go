// internal/game/effects.go
package game

import "github.com/rgillies/switchgame/internal/card"

// ApplyEffects folds the effect of a played group into the state's
// pending attack/skip/direction/nomination fields. It assumes the play
// has already been validated; the validator guarantees a counter play
// matches the pending attack type, so a type replacement here is purely
// defensive.
func (s *State) ApplyEffects(cards []card.Card, chosenSuit *card.Suit) {
	fx := CalculateEffects(cards)

	if fx.Attack != AttackNone {
		if s.PendingAttack.Type == fx.Attack {
			s.PendingAttack.Amount += fx.AttackAmount
		} else {
			s.PendingAttack = PendingAttack{Type: fx.Attack, Amount: fx.AttackAmount}
		}
	}

	if fx.RedJacks > 0 && s.PendingAttack.Type == AttackBlackJacks {
		s.PendingAttack.Amount -= 5 * fx.RedJacks
		if s.PendingAttack.Amount <= 0 {
			s.PendingAttack = PendingAttack{}
		}
	}
	// Red Jacks against a twos attack or no attack behave as ordinary
	// cards: nothing to fold.

	if fx.Skip > 0 {
		s.PendingSkips += fx.Skip
	}

	if fx.Reverse {
		s.Direction = s.Direction.Reversed()
	}

	if fx.NominateSuit {
		if chosenSuit != nil {
			suit := *chosenSuit
			s.NominatedSuit = &suit
		} else {
			s.NominatedSuit = nil
		}
	}
}
