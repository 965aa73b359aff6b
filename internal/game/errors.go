// internal/game/errors.go
package game

import "fmt"

// Kind enumerates the structured error kinds a rejected operation can
// carry. All of them are recoverable by retrying with a legal action.
type Kind string

const (
	KindPlayerNotFound    Kind = "player_not_found"
	KindPlayerAlreadyWon  Kind = "player_already_won"
	KindNotYourTurn       Kind = "not_your_turn"
	KindCardsNotInHand    Kind = "cards_not_in_hand"
	KindDuplicateCards    Kind = "duplicate_cards_in_play"
	KindInvalidStack      Kind = "invalid_stack"
	KindInvalidPlay       Kind = "invalid_play"
	KindInvalidCounter    Kind = "invalid_counter"
	KindMustPlay          Kind = "must_play"
	KindMustDraw          Kind = "must_draw"
	KindGameNotFound      Kind = "game_not_found"
	KindCannotJoin        Kind = "cannot_join"
	KindInvalidStatus     Kind = "invalid_status"
	KindNoDiscardPile     Kind = "no_discard_pile"
	KindIntegrity         Kind = "integrity_violation"
	KindAlreadyStarted    Kind = "already_started"
	KindSessionExpired    Kind = "session_expired"
	KindInvalidSession    Kind = "invalid_session"
)

// Error is a structured rejection value: a kind, a human message, and
// optional details. Rejections never leave partial mutations behind.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a structured error with optional detail fields.
func NewError(kind Kind, message string, details map[string]interface{}) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error, or "" when err is not a
// structured game error.
func KindOf(err error) Kind {
	if ge, ok := err.(*Error); ok {
		return ge.Kind
	}
	return ""
}
