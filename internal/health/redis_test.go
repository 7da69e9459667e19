package health

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// TestRedisChecker_Creation verifies the checker wraps the given client.
func TestRedisChecker_Creation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	checker := NewRedisChecker(client)
	if checker == nil {
		t.Fatal("expected checker to be non-nil")
	}
	if checker.client != client {
		t.Error("expected checker client to match provided client")
	}
}

// TestRedisChecker_ContextCancellation verifies a canceled context fails
// the check without waiting on the network.
func TestRedisChecker_ContextCancellation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	checker := NewRedisChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := checker.HealthCheck(ctx); err == nil {
		t.Error("expected an error for a canceled context")
	}
}
