package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OnceMarker records that a keyed action happened, so repeated worker runs
// do not perform it twice while the marker lives.
type OnceMarker struct {
	client *redis.Client
}

// NewOnceMarker wraps a Redis client for SETNX based dedup markers.
func NewOnceMarker(client *redis.Client) *OnceMarker {
	return &OnceMarker{client: client}
}

// First returns true exactly once per key until the marker expires.
func (m *OnceMarker) First(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set dedup marker: %w", err)
	}
	return ok, nil
}
