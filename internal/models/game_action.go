// internal/models/game_action.go
package models

// GameAction captures a client's in-game command as it arrives off the
// wire, before the engine validates it.
type GameAction struct {
	ActionType string                 `json:"action_type"`
	Payload    map[string]interface{} `json:"payload"`
}
