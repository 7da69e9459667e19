package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// Cache key for the grant snapshot.
const snapshotKey = "fundscope:catalog:grants"

// SnapshotCache caches the materialized grant snapshot in Redis so repeated
// match requests between refreshes do not re-read the full store. Entries
// are CBOR-encoded; scores are never cached, only raw records.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSnapshotCache creates a SnapshotCache with the given TTL.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached grant snapshot, or (nil, false) on a miss.
// Decode failures are treated as misses; a corrupt entry is dropped.
func (c *SnapshotCache) Get(ctx context.Context) ([]*Grant, bool) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("snapshot cache read failed", "error", err)
		return nil, false
	}

	var grants []*Grant
	if err := cbor.Unmarshal(data, &grants); err != nil {
		c.logger.Warn("snapshot cache entry corrupt, dropping", "error", err)
		c.client.Del(ctx, snapshotKey)
		return nil, false
	}
	return grants, true
}

// Set stores the grant snapshot. Cache write failures are non-fatal; the
// caller already holds the snapshot it needs.
func (c *SnapshotCache) Set(ctx context.Context, grants []*Grant) error {
	data, err := cbor.Marshal(grants)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot. Called by the ingestion pipeline
// after a refresh so the next read sees merged records.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot cache: %w", err)
	}
	return nil
}
