package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"quizflow/internal/cache"
	"quizflow/internal/model"
	"quizflow/internal/repository"
)

func copySession(s *model.QuizSession) *model.QuizSession {
	out := *s
	out.Responses = model.CloneResponses(s.Responses)
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return &out
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.QuizSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.QuizSession{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *model.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = copySession(s)
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*model.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *fakeSessionRepo) UpdateProgress(_ context.Context, p model.ProgressPatch, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[p.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.CurrentStep = p.CurrentStep
	if p.Responses != nil {
		s.Responses = model.CloneResponses(p.Responses)
	}
	if p.Status != "" {
		s.Status = p.Status
	}
	s.LastActivity = at
	return nil
}

func (r *fakeSessionRepo) Complete(_ context.Context, id string, res *model.CompletionResult, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.Status = model.SessionCompleted
	s.Result = res
	s.CompletedAt = &at
	return nil
}

func (r *fakeSessionRepo) AddInteractions(_ context.Context, id string, n int, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.InteractionsN += n
	return nil
}

func (r *fakeSessionRepo) ListByQuiz(_ context.Context, quizID string, _ int64) ([]*model.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.QuizSession
	for _, s := range r.sessions {
		if s.QuizID == quizID {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

type fakeAnswerRepo struct {
	mu      sync.Mutex
	answers []*model.Answer
}

func (r *fakeAnswerRepo) Create(_ context.Context, a *model.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.answers = append(r.answers, &cp)
	return nil
}

func (r *fakeAnswerRepo) GetBySessionID(_ context.Context, sid string) ([]*model.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Answer
	for _, a := range r.answers {
		if a.SessionID == sid {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAnswerRepo) ExistsAttempt(_ context.Context, sid, attempt string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.SessionID == sid && a.ClientAttemptID == attempt {
			return true, nil
		}
	}
	return false, nil
}

type fakeInteractionRepo struct {
	mu      sync.Mutex
	batches []model.InteractionBatch
}

func (r *fakeInteractionRepo) InsertBatch(_ context.Context, b *model.InteractionBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, *b)
	return nil
}

func (r *fakeInteractionRepo) CountBySession(_ context.Context, sid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.batches {
		if b.SessionID == sid {
			n++
		}
	}
	return n, nil
}

type fakeProgressCache struct {
	mu       sync.Mutex
	sessions map[string]*model.QuizSession
	err      error
}

func newFakeProgressCache() *fakeProgressCache {
	return &fakeProgressCache{sessions: map[string]*model.QuizSession{}}
}

func (c *fakeProgressCache) Set(_ context.Context, s *model.QuizSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sessions[s.ID] = copySession(s)
	return nil
}

func (c *fakeProgressCache) Get(_ context.Context, id string) (*model.QuizSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s, ok := c.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (c *fakeProgressCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
	return nil
}

type fakeBrandCache struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

func newFakeBrandCache() *fakeBrandCache {
	return &fakeBrandCache{counts: map[string]map[string]int{}}
}

func (c *fakeBrandCache) Incr(_ context.Context, quizID, brand string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[quizID] == nil {
		c.counts[quizID] = map[string]int{}
	}
	c.counts[quizID][brand]++
	return nil
}

func (c *fakeBrandCache) Top(_ context.Context, quizID string, limit int64) ([]model.BrandCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.BrandCount
	for b, n := range c.counts[quizID] {
		out = append(out, model.BrandCount{Brand: b, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Brand < out[j].Brand
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (c *fakeBrandCache) Rank(ctx context.Context, quizID, brand string) (int64, error) {
	top, _ := c.Top(ctx, quizID, 1000)
	for _, b := range top {
		if b.Brand == brand {
			return int64(b.Rank), nil
		}
	}
	return 0, nil
}

type fakeFunnelCache struct {
	mu     sync.Mutex
	counts map[string]*cache.FunnelCounts
	err    error
}

func newFakeFunnelCache() *fakeFunnelCache {
	return &fakeFunnelCache{counts: map[string]*cache.FunnelCounts{}}
}

func (c *fakeFunnelCache) get(quizID string) *cache.FunnelCounts {
	f, ok := c.counts[quizID]
	if !ok {
		f = &cache.FunnelCounts{QuestionAnswers: map[string]int64{}}
		c.counts[quizID] = f
	}
	return f
}

func (c *fakeFunnelCache) Incr(_ context.Context, quizID, field string, by int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.get(quizID)
	switch field {
	case cache.FieldStarts:
		f.Starts += by
	case cache.FieldCompletions:
		f.Completions += by
	case cache.FieldHesitations:
		f.Hesitations += by
	}
	return nil
}

func (c *fakeFunnelCache) IncrAnswer(_ context.Context, quizID, questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(quizID).QuestionAnswers[questionID]++
	return nil
}

func (c *fakeFunnelCache) Get(_ context.Context, quizID string) (*cache.FunnelCounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	f := *c.get(quizID)
	return &f, nil
}

type fakeAttemptCache struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newFakeAttemptCache() *fakeAttemptCache {
	return &fakeAttemptCache{claimed: map[string]bool{}}
}

func (c *fakeAttemptCache) Claim(_ context.Context, sid, attempt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	key := sid + ":" + attempt
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}

type broadcastMsg struct {
	QuizID string
	Type   string
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []broadcastMsg
}

func (b *fakeBroadcaster) Broadcast(quizID, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, broadcastMsg{QuizID: quizID, Type: msgType})
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.msgs))
	for i, m := range b.msgs {
		out[i] = m.Type
	}
	return out
}

var errCacheDown = errors.New("redis: connection refused")
