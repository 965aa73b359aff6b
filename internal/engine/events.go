// internal/engine/events.go
package engine

import "github.com/google/uuid"

// EventType is an enum-like type for broadcast game events.
type EventType string

const (
	EventPlayerJoined  EventType = "player_joined"
	EventPlayerLeft    EventType = "player_left"
	EventCardsPlayed   EventType = "cards_played"
	EventCardsDrawn    EventType = "cards_drawn"
	EventAIPlayed      EventType = "ai_played"
	EventGameStarted   EventType = "game_started"
	EventGameOver      EventType = "game_over"
	EventPlayerTimeout EventType = "player_timeout"
)

// Event is one broadcast to subscribers. Seq increments per game so
// consumers can spot gaps.
type Event struct {
	Type    EventType              `json:"type"`
	GameID  uuid.UUID              `json:"game_id"`
	Seq     int                    `json:"seq"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}
