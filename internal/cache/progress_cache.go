package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quizflow/internal/model"
)

// ProgressCache holds the live state of running sessions for the ops portal
type ProgressCache interface {
	Set(ctx context.Context, session *model.QuizSession) error
	Get(ctx context.Context, id string) (*model.QuizSession, error)
	Delete(ctx context.Context, id string) error
}

type progressCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressCache(client *redis.Client, ttl time.Duration) ProgressCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &progressCache{
		client: client,
		ttl:    ttl,
	}
}

func progressKey(id string) string {
	return "quiz:session:" + id
}

func (c *progressCache) Set(ctx context.Context, session *model.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, progressKey(session.ID), data, c.ttl).Err()
}

func (c *progressCache) Get(ctx context.Context, id string) (*model.QuizSession, error) {
	data, err := c.client.Get(ctx, progressKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *progressCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, progressKey(id)).Err()
}
