// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler. These give
// clients more specific closure reasons than the standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionError = 3001 // Session token was invalid or expired.
	UnknownGameError    = 3002 // Target game ID in the WS URL does not exist.
	WrongGameError      = 3003 // Session token belongs to a different game.
)
