package service

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript deletes the key only if it still holds our token.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker implements Locker with SET NX and a per-acquisition token.
type RedisLocker struct {
	client lockClient
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryLock acquires key for ttl. The returned unlock only releases the key while it
// still belongs to this acquisition, so an expired lock re-taken by someone else is left alone.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, schema.E(schema.KindLock, "lock", "could not acquire ingest lock "+key, err)
	}
	if !ok {
		return nil, schema.E(schema.KindBusy, "lock", "this source is already being ingested", nil)
	}
	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, unlockScript, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
