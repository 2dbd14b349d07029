package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"quizflow/internal/cache"
	"quizflow/internal/catalog"
	"quizflow/internal/model"
)

const topBrandLimit = 5

// StatsService builds the ops funnel view
type StatsService struct {
	catalogs *catalog.Registry
	funnel   cache.FunnelCache
	brands   cache.BrandCache
	now      func() time.Time
}

func NewStatsService(catalogs *catalog.Registry, funnel cache.FunnelCache, brands cache.BrandCache) *StatsService {
	return &StatsService{
		catalogs: catalogs,
		funnel:   funnel,
		brands:   brands,
		now:      time.Now,
	}
}

// Funnel reads counters and brand ranking concurrently
func (s *StatsService) Funnel(ctx context.Context, quizID string) (*model.Funnel, error) {
	if _, err := s.catalogs.Get(quizID); err != nil {
		return nil, err
	}

	var (
		counts *cache.FunnelCounts
		top    []model.BrandCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.funnel.Get(gctx, quizID)
		if err != nil {
			return fmt.Errorf("failed to read funnel: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		top, err = s.brands.Top(gctx, quizID, topBrandLimit)
		if err != nil {
			return fmt.Errorf("failed to read brands: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &model.Funnel{
		QuizID:          quizID,
		Starts:          counts.Starts,
		Completions:     counts.Completions,
		Hesitations:     counts.Hesitations,
		QuestionAnswers: counts.QuestionAnswers,
		TopBrands:       top,
		UpdatedAt:       s.now(),
	}
	if out.TopBrands == nil {
		out.TopBrands = []model.BrandCount{}
	}
	if counts.Starts > 0 {
		out.CompletionRate = float64(counts.Completions) / float64(counts.Starts)
	}
	return out, nil
}
