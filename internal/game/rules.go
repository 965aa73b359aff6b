// internal/game/rules.go
package game

import "github.com/rgillies/switchgame/internal/card"

// AttackType classifies a pending forced-draw obligation.
type AttackType string

const (
	AttackNone       AttackType = ""
	AttackTwos       AttackType = "twos"
	AttackBlackJacks AttackType = "black_jacks"
)

// PendingAttack is the accumulated forced-draw obligation facing the
// next seat. A zero value means no attack.
type PendingAttack struct {
	Type   AttackType `json:"type,omitempty"`
	Amount int        `json:"amount,omitempty"`
}

// None reports whether no attack is pending.
func (a PendingAttack) None() bool {
	return a.Type == AttackNone || a.Amount <= 0
}

// CanPlayCard reports whether c is a legal follow on top under an
// optional nominated suit. A nominated suit constrains the play to that
// suit, except that rank equality with the top card is always allowed
// (an Ace may answer an Ace).
func CanPlayCard(c, top card.Card, nominated *card.Suit) bool {
	if nominated != nil {
		return c.Suit == *nominated || c.Rank == top.Rank
	}
	return card.Matches(c, top)
}

// CanCounterAttack reports whether c answers a pending attack of the
// given type: twos counter twos, Jacks of either color counter black
// Jack attacks.
func CanCounterAttack(c card.Card, attack AttackType) bool {
	switch attack {
	case AttackTwos:
		return c.Rank == 2
	case AttackBlackJacks:
		return c.Rank == card.Jack
	default:
		return false
	}
}

// CanCounterSkip reports whether c answers a pending skip. Only sevens do.
func CanCounterSkip(c card.Card) bool {
	return c.Rank == 7
}

// ValidStack reports whether cards form a playable group: non-empty and
// all of one rank. Mixed Jack colors are a valid stack; their opposing
// effects are resolved by the effect processor.
func ValidStack(cards []card.Card) bool {
	if len(cards) == 0 {
		return false
	}
	rank := cards[0].Rank
	for _, c := range cards[1:] {
		if c.Rank != rank {
			return false
		}
	}
	return true
}

// Effects is the computed consequence of playing one homogeneous-rank
// group. RedJacks is a raw count; turning it into an attack reduction
// is the effect processor's job.
type Effects struct {
	Attack       AttackType
	AttackAmount int
	Skip         int
	Reverse      bool
	NominateSuit bool
	RedJacks     int
}

// CalculateEffects computes the effect of a valid same-rank group.
// Precondition: ValidStack(cards).
func CalculateEffects(cards []card.Card) Effects {
	var fx Effects
	switch cards[0].Rank {
	case 2:
		fx.Attack = AttackTwos
		fx.AttackAmount = 2 * len(cards)
	case 7:
		fx.Skip = len(cards)
	case card.Queen:
		fx.Reverse = len(cards)%2 == 1
	case card.Jack:
		for _, c := range cards {
			if c.BlackJack() {
				fx.AttackAmount += 5
			} else {
				fx.RedJacks++
			}
		}
		if fx.AttackAmount > 0 {
			fx.Attack = AttackBlackJacks
		}
	case card.Ace:
		// One nomination per play regardless of how many Aces it holds.
		fx.NominateSuit = true
	}
	return fx
}
