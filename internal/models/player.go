// internal/models/player.go
package models

import (
	"github.com/google/uuid"

	"github.com/rgillies/switchgame/internal/card"
)

// PlayerStatus tracks whether a seat is still in the running.
type PlayerStatus string

const (
	StatusPlaying PlayerStatus = "playing"
	StatusWon     PlayerStatus = "won"
)

// PlayerType distinguishes human seats from computer-controlled ones.
type PlayerType string

const (
	TypeHuman PlayerType = "human"
	TypeAI    PlayerType = "ai"
)

// Difficulty selects the AI strategy tier for a computer seat.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ConnectionStatus mirrors the connection monitor's view of a seat's
// transport. It is informational inside the game state; liveness is
// owned by the monitor.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// Player is one seat in a game. The hand is mutated only by the owning
// game state's play/draw operations; Status flips to won exactly once.
type Player struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Hand       []card.Card      `json:"hand"`
	Status     PlayerStatus     `json:"status"`
	Type       PlayerType       `json:"type"`
	Difficulty Difficulty       `json:"difficulty,omitempty"`
	Connection ConnectionStatus `json:"connection_status"`
}

// HasCard reports whether the hand contains at least n copies of c.
func (p *Player) HasCard(c card.Card, n int) bool {
	count := 0
	for _, h := range p.Hand {
		if h == c {
			count++
		}
	}
	return count >= n
}

// Seat is the lobby-time description used to construct a Player at
// game start.
type Seat struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Type       PlayerType `json:"type"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}
