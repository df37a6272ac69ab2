package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// releaseScript deletes the lock only if it is still held by this owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errHeld = errors.New("lock held")

// RedisLocker implements Locker across processes with SET NX PX. A lock
// whose holder dies is freed after ttl.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
	logger  *slog.Logger
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder
// can block a key and maxWait bounds how long Acquire spins.
func NewRedisLocker(client *redis.Client, ttl, maxWait time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, maxWait: maxWait, logger: logger}
}

// Acquire spins with jittered exponential backoff until the key is free,
// maxWait elapses or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	start := time.Now()
	redisKey := keyPrefix + key
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("set lock %s: %w", key, err))
		}
		if !ok {
			return struct{}{}, errHeld
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(l.maxWait),
	)
	observeWait("redis", start, err)
	if err != nil {
		if errors.Is(err, errHeld) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Released with a fresh context: the caller's may already be done.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			l.release(rctx, key, redisKey, token)
		})
	}, nil
}

// release deletes the key if token still owns it. A failed or lost release
// leaves the key held until its PX expiry, so both are logged.
func (l *RedisLocker) release(ctx context.Context, key, redisKey, token string) {
	deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	switch {
	case err != nil:
		l.logger.WarnContext(ctx, "failed to release lock",
			slog.String("key", key),
			slog.Duration("ttl", l.ttl),
			slog.String("error", err.Error()),
		)
	case deleted == 0:
		l.logger.WarnContext(ctx, "lock expired before release",
			slog.String("key", key),
			slog.Duration("ttl", l.ttl),
		)
	}
}
