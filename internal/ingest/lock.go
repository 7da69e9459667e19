package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockKey is the Redis key guarding concurrent refresh runs.
const lockKey = "fundscope:refresh:lock"

// releaseScript deletes the lock only if this run still owns it, so a run
// that outlived its TTL cannot release a lock taken by a newer run.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RefreshLock implements Locker on Redis with SET NX and an owner token.
// It serializes whole refresh runs; per-key serialization inside a run is
// handled by the pipeline's upsert sharding.
type RefreshLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRefreshLock creates a RefreshLock. ttl bounds how long a crashed run
// can block the next one; it should exceed the longest expected refresh.
func NewRefreshLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RefreshLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshLock{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock, returning false when another run holds it.
func (l *RefreshLock) Acquire(ctx context.Context) (bool, func(), error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("failed to take refresh lock: %w", err)
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		// Best effort: the TTL reclaims the lock if this fails.
		if err := l.client.Eval(context.Background(), releaseScript, []string{lockKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release refresh lock", "error", err)
		}
	}
	return true, release, nil
}
