package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"evcharge/backend/services/charging-service/internal/models"
)

// RedisHistory stores each user's sessions as a JSON list.
type RedisHistory struct {
	client *redis.Client
	limit  int64
}

// NewRedisHistory returns redis-backed history; limit <= 0 keeps everything.
func NewRedisHistory(client *redis.Client, limit int) *RedisHistory {
	return &RedisHistory{client: client, limit: int64(limit)}
}

// HistoryKey is the list key of a user's sessions.
func HistoryKey(userID string) string {
	return fmt.Sprintf("charging_history:%s", userID)
}

// Append pushes the session and trims the list to the limit.
func (r *RedisHistory) Append(ctx context.Context, session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	key := HistoryKey(session.UserID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.limit > 0 {
		pipe.LTrim(ctx, key, -r.limit, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// List returns the user's sessions newest first.
func (r *RedisHistory) List(ctx context.Context, userID string) ([]models.Session, error) {
	raw, err := r.client.LRange(ctx, HistoryKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Session, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var s models.Session
		if err := json.Unmarshal([]byte(raw[i]), &s); err != nil {
			return nil, fmt.Errorf("history: decode %s: %w", HistoryKey(userID), err)
		}
		out = append(out, s)
	}
	return out, nil
}
