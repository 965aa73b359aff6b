// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the engine mirrors game events to
// for the external historian consumer.
var DefaultQueueName = "switch_events"

// GameEventRecord is the queued form of one broadcast event.
type GameEventRecord struct {
	GameID    uuid.UUID              `json:"game_id"`
	Seq       int                    `json:"seq"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Queue wraps the Redis client. A nil *Queue is a no-op publisher, so
// callers never have to branch on whether Redis is configured.
type Queue struct {
	rdb  *redis.Client
	name string
}

// Connect initializes the queue from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - HISTORIAN_QUEUE_NAME (optional)
func Connect(ctx context.Context) (*Queue, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Queue{rdb: rdb, name: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)}, nil
}

// Publish serializes the record and pushes it onto the queue. A nil
// queue silently discards.
func (q *Queue) Publish(ctx context.Context, record GameEventRecord) error {
	if q == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameEventRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", q.name, err)
	}
	return nil
}

// Close releases the Redis client.
func (q *Queue) Close() error {
	if q == nil {
		return nil
	}
	return q.rdb.Close()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
