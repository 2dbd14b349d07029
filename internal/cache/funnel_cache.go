package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	FieldStarts      = "starts"
	FieldCompletions = "completions"
	FieldHesitations = "hesitations"
	answerPrefix     = "answers:"
)

// FunnelCounts is the raw hash behind a quiz funnel
type FunnelCounts struct {
	Starts          int64
	Completions     int64
	Hesitations     int64
	QuestionAnswers map[string]int64
}

// FunnelCache keeps per-quiz conversion counters in one hash
type FunnelCache interface {
	Incr(ctx context.Context, quizID, field string, by int64) error
	IncrAnswer(ctx context.Context, quizID, questionID string) error
	Get(ctx context.Context, quizID string) (*FunnelCounts, error)
}

type funnelCache struct {
	client *redis.Client
}

func NewFunnelCache(client *redis.Client) FunnelCache {
	return &funnelCache{client: client}
}

func funnelKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:funnel", quizID)
}

func (c *funnelCache) Incr(ctx context.Context, quizID, field string, by int64) error {
	return c.client.HIncrBy(ctx, funnelKey(quizID), field, by).Err()
}

func (c *funnelCache) IncrAnswer(ctx context.Context, quizID, questionID string) error {
	return c.client.HIncrBy(ctx, funnelKey(quizID), answerPrefix+questionID, 1).Err()
}

func (c *funnelCache) Get(ctx context.Context, quizID string) (*FunnelCounts, error) {
	raw, err := c.client.HGetAll(ctx, funnelKey(quizID)).Result()
	if err != nil {
		return nil, err
	}
	return parseFunnel(raw), nil
}

func parseFunnel(raw map[string]string) *FunnelCounts {
	out := &FunnelCounts{QuestionAnswers: map[string]int64{}}
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case field == FieldStarts:
			out.Starts = n
		case field == FieldCompletions:
			out.Completions = n
		case field == FieldHesitations:
			out.Hesitations = n
		case strings.HasPrefix(field, answerPrefix):
			out.QuestionAnswers[strings.TrimPrefix(field, answerPrefix)] = n
		}
	}
	return out
}
