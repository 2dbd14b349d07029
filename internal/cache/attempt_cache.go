package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptCache deduplicates answer submissions by client attempt id
type AttemptCache interface {
	// Claim returns false when the attempt was already recorded
	Claim(ctx context.Context, sessionID, attemptID string) (bool, error)
}

type attemptCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptCache(client *redis.Client, ttl time.Duration) AttemptCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &attemptCache{client: client, ttl: ttl}
}

func (c *attemptCache) Claim(ctx context.Context, sessionID, attemptID string) (bool, error) {
	return c.client.SetNX(ctx, "quiz:attempt:"+sessionID+":"+attemptID, 1, c.ttl).Result()
}
