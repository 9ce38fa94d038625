package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// ErrLocked is returned when another worker holds the order.
var ErrLocked = errors.New("order is already being processed")

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "order_lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	locked, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}

	return func() {
		// the caller's context may already be cancelled; release regardless
		if err := releaseScript.Run(context.Background(), l.client, []string{lockKey}, token).Err(); err != nil {
			telemetry.Logger.Warn("Failed to release order lock", zap.String("key", lockKey), zap.Error(err))
		}
	}, nil
}
