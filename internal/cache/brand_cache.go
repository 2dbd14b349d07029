package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizflow/internal/model"
)

// BrandCache ranks brands by how often quiz takers pick them
type BrandCache interface {
	Incr(ctx context.Context, quizID, brand string) error
	Top(ctx context.Context, quizID string, limit int64) ([]model.BrandCount, error)
	Rank(ctx context.Context, quizID, brand string) (int64, error)
}

type brandCache struct {
	client *redis.Client
}

func NewBrandCache(client *redis.Client) BrandCache {
	return &brandCache{client: client}
}

func brandKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:brands", quizID)
}

func (c *brandCache) Incr(ctx context.Context, quizID, brand string) error {
	return c.client.ZIncrBy(ctx, brandKey(quizID), 1, brand).Err()
}

// Top returns the most picked brands, highest first
func (c *brandCache) Top(ctx context.Context, quizID string, limit int64) ([]model.BrandCount, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := c.client.ZRevRangeWithScores(ctx, brandKey(quizID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.BrandCount, len(results))
	for i, z := range results {
		out[i] = model.BrandCount{
			Brand: z.Member.(string),
			Count: int(z.Score),
			Rank:  i + 1,
		}
	}
	return out, nil
}

// Rank is 1-based; 0 means the brand was never picked
func (c *brandCache) Rank(ctx context.Context, quizID, brand string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, brandKey(quizID), brand).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}
