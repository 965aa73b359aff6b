// internal/engine/view.go
package engine

import (
	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/card"
	"github.com/rgillies/switchgame/internal/game"
	"github.com/rgillies/switchgame/internal/models"
)

// SeatView is one seat as any client may see it: hand sizes only,
// never other players' cards.
type SeatView struct {
	ID         uuid.UUID               `json:"id"`
	Name       string                  `json:"name"`
	HandCount  int                     `json:"hand_count"`
	Status     models.PlayerStatus     `json:"status"`
	Type       models.PlayerType       `json:"type"`
	Connection models.ConnectionStatus `json:"connection_status"`
	IsCurrent  bool                    `json:"is_current"`
}

// StateView is the redacted per-seat snapshot sent on connect,
// reconnect and get_state. Hand is populated only for the requesting
// seat.
type StateView struct {
	GameID        uuid.UUID          `json:"game_id"`
	Status        game.Status        `json:"status"`
	Direction     game.Direction     `json:"direction"`
	PendingAttack game.PendingAttack `json:"pending_attack"`
	PendingSkips  int                `json:"pending_skips"`
	NominatedSuit *card.Suit         `json:"nominated_suit,omitempty"`
	DiscardTop    *card.Card         `json:"discard_top,omitempty"`
	DeckCount     int                `json:"deck_count"`
	Winners       []uuid.UUID        `json:"winners"`
	Seats         []SeatView         `json:"seats"`
	Hand          []card.Card        `json:"hand,omitempty"`
}

// buildView renders the state for one requesting seat. Runs inside the
// actor.
func buildView(s *game.State, forSeat uuid.UUID) StateView {
	view := StateView{
		GameID:        s.ID,
		Status:        s.Status,
		Direction:     s.Direction,
		PendingAttack: s.PendingAttack,
		PendingSkips:  s.PendingSkips,
		NominatedSuit: s.NominatedSuit,
		DeckCount:     len(s.Deck),
		Winners:       append([]uuid.UUID{}, s.Winners...),
	}
	if top, ok := s.TopDiscard(); ok {
		t := top
		view.DiscardTop = &t
	}
	for i, p := range s.Players {
		view.Seats = append(view.Seats, SeatView{
			ID:         p.ID,
			Name:       p.Name,
			HandCount:  len(p.Hand),
			Status:     p.Status,
			Type:       p.Type,
			Connection: p.Connection,
			IsCurrent:  i == s.CurrentPlayerIndex,
		})
		if p.ID == forSeat {
			view.Hand = append([]card.Card{}, p.Hand...)
		}
	}
	return view
}
