// internal/ai/strategy.go
package ai

import (
	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
)

// Heuristic is the default computer-player decision function. The
// engine only requires that its choices are legal; tuning lives here
// and can be swapped out wholesale.
type Heuristic struct{}

// New returns the default heuristic.
func New() *Heuristic {
	return &Heuristic{}
}

// cardWeight favors shedding heavy obligation cards early.
func cardWeight(c card.Card) float64 {
	switch {
	case c.BlackJack():
		return 6
	case c.Rank == 2:
		return 4
	case c.Rank == 7:
		return 3
	case c.Rank == card.Queen:
		return 2
	case c.Rank == card.Ace:
		return 1.5
	default:
		return float64(c.Rank) / 14
	}
}

// ScorePlay rates a candidate same-rank group from a hand. Higher is
// better. Easy mode just prefers shedding more cards; higher
// difficulties weight obligation cards.
func (h *Heuristic) ScorePlay(cards []card.Card, hand []card.Card, difficulty models.Difficulty) float64 {
	if difficulty == models.DifficultyEasy {
		return float64(len(cards))
	}
	score := 0.0
	for _, c := range cards {
		score += cardWeight(c)
	}
	return score
}

// ChooseSuit nominates the suit the hand is longest in, so follow-up
// turns stay playable. Hard mode ignores Aces when counting, since
// they are playable regardless.
func (h *Heuristic) ChooseSuit(hand []card.Card, difficulty models.Difficulty) card.Suit {
	counts := [4]int{}
	for _, c := range hand {
		if difficulty == models.DifficultyHard && c.Rank == card.Ace {
			continue
		}
		counts[c.Suit]++
	}
	best := card.Hearts
	for s := card.Hearts; s <= card.Spades; s++ {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

// ChooseCounter picks which of the available counter cards to commit
// against a pending attack. Easy plays the minimum one card; otherwise
// the full matching set goes out, preferring black Jacks (escalate)
// over red (cancel) when both are held against a black Jack attack.
func (h *Heuristic) ChooseCounter(available []card.Card, attack game.AttackType, difficulty models.Difficulty) []card.Card {
	if len(available) == 0 {
		return nil
	}
	if difficulty == models.DifficultyEasy {
		return available[:1]
	}
	if attack != game.AttackBlackJacks {
		return available
	}
	var black, red []card.Card
	for _, c := range available {
		if c.BlackJack() {
			black = append(black, c)
		} else {
			red = append(red, c)
		}
	}
	if len(black) > 0 {
		return black
	}
	return red
}
