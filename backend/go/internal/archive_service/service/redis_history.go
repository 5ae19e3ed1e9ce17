package service

import (
	"AskArchive/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const historyPrefix = "archive:history:"

type historyClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisHistory keeps each session as a capped Redis list of JSON encoded messages.
type RedisHistory struct {
	client     historyClient
	maxEntries int64
	ttl        time.Duration
}

// NewRedisHistory creates a RedisHistory keeping at most maxEntries messages per session.
// A zero ttl keeps sessions until the user is deleted.
func NewRedisHistory(client *redis.Client, maxEntries int, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, maxEntries: int64(maxEntries), ttl: ttl}
}

func historyKey(userID, sessionID string) string {
	return historyPrefix + userID + ":" + sessionID
}

// Load returns up to limit of the most recent messages, oldest first.
func (h *RedisHistory) Load(ctx context.Context, userID, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := h.client.LRange(ctx, historyKey(userID, sessionID), -int64(limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append adds msgs to the session and trims it to the newest maxEntries.
func (h *RedisHistory) Append(ctx context.Context, userID, sessionID string, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		values = append(values, string(b))
	}

	key := historyKey(userID, sessionID)
	if err := h.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if h.maxEntries > 0 {
		if err := h.client.LTrim(ctx, key, -h.maxEntries, -1).Err(); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	if h.ttl > 0 {
		if err := h.client.Expire(ctx, key, h.ttl).Err(); err != nil {
			return fmt.Errorf("expire history: %w", err)
		}
	}
	return nil
}

// ClearUser removes every session of userID.
func (h *RedisHistory) ClearUser(ctx context.Context, userID string) error {
	pattern := historyPrefix + escapeGlob(userID) + ":*"
	var cursor uint64
	for {
		keys, next, err := h.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		if len(keys) > 0 {
			if err := h.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete history: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

var _ HistoryStore = (*RedisHistory)(nil)
