// internal/models/snapshot.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the persisted envelope for one game. State carries the
// serialized game state opaquely; the store never interprets it beyond
// the id/status/timestamps it indexes on.
type Snapshot struct {
	GameID    uuid.UUID       `json:"game_id"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
	State     json.RawMessage `json:"state"`
}
