package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const historyKeyPrefix = "chat_history:"

// historyTTL caps how long idle chat histories live in Redis.
const historyTTL = 30 * 24 * time.Hour

// HistoryMessage is one persisted turn of a user's assistant conversation.
type HistoryMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore keeps a capped per-user chat transcript in a Redis list. A nil
// store (no Redis configured) is a valid no-op: every method short-circuits,
// and the assistant runs without memory across turns.
type HistoryStore struct {
	redis       *redis.Client
	maxMessages int64
}

func NewHistoryStore(redisClient *redis.Client) *HistoryStore {
	if redisClient == nil {
		return nil
	}
	return &HistoryStore{redis: redisClient, maxMessages: 100}
}

// Append records one turn, trimming the list to the retention cap.
func (s *HistoryStore) Append(ctx context.Context, userID int64, msg HistoryMessage) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("assistant: marshal history message: %w", err)
	}

	key := historyKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, historyTTL)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("assistant: append history message: %w", err)
	}
	return nil
}

// List returns the most recent limit turns in chronological order. limit <= 0
// returns the whole retained transcript.
func (s *HistoryStore) List(ctx context.Context, userID int64, limit int64) ([]HistoryMessage, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, historyKey(userID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []HistoryMessage{}, nil
		}
		return nil, fmt.Errorf("assistant: list history: %w", err)
	}

	out := make([]HistoryMessage, 0, len(raw))
	for _, item := range raw {
		var msg HistoryMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear drops the user's transcript.
func (s *HistoryStore) Clear(ctx context.Context, userID int64) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.redis.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("assistant: clear history: %w", err)
	}
	return nil
}

func historyKey(userID int64) string {
	return historyKeyPrefix + strconv.FormatInt(userID, 10)
}
