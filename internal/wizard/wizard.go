// Package wizard runs one multi-step quiz session: it owns the session state,
// navigation, auto-advance and hesitation timers, and mirrors everything to a
// best-effort persistence gateway.
package wizard

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"quizflow/internal/analytics"
	"quizflow/internal/catalog"
	"quizflow/internal/clock"
	"quizflow/internal/model"
	"quizflow/internal/tracker"
)

type direction int

const (
	forward direction = iota
	back
)

func (d direction) String() string {
	if d == back {
		return "back"
	}
	return "next"
}

// Wizard is one quiz run. All methods are safe for concurrent use.
type Wizard struct {
	mu sync.Mutex

	cat     *catalog.Catalog
	reducer Reducer
	opts    Options
	log     *zap.Logger
	tracker *tracker.Tracker

	state   State
	baseCtx context.Context
	shownAt time.Time
	started bool
	closed  bool

	autoTimer clock.Timer
	autoGen   uint64

	outcome  *Outcome
	done     chan struct{}
	inflight sync.WaitGroup
}

// New creates a wizard positioned on the catalog's first question
func New(cat *catalog.Catalog, opts Options) *Wizard {
	opts = opts.withDefaults()
	now := opts.Clock.Now()
	w := &Wizard{
		cat:     cat,
		reducer: Reducer{Catalog: cat},
		opts:    opts,
		log:     opts.Logger.With(zap.String("quizId", cat.ID())),
		state:   NewState(cat, opts.UTM, now),
		baseCtx: context.Background(),
		shownAt: now,
		done:    make(chan struct{}),
	}
	w.tracker = tracker.New(tracker.Config{
		FlushInterval:   opts.Timings.FlushInterval,
		HesitationAfter: opts.Timings.Hesitation,
		MaxBuffer:       opts.Timings.MaxBuffer,
		CallTimeout:     opts.Timings.CallTimeout,
	}, opts.Clock, opts.Gateway.FlushInteractions,
		tracker.WithLogger(w.log),
		tracker.WithSpawner(w.spawn),
		tracker.WithHesitationHandler(w.hesitated),
		tracker.WithSuppression(w.suppressHesitation),
	)
	return w
}

// Start opens the remote session and starts the tracker.
// A failed session start leaves the wizard in local-only mode.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.baseCtx = context.WithoutCancel(ctx)
	s := w.state
	q, _ := s.Current()
	w.mu.Unlock()

	w.tracker.SetQuestion(q.ID)
	w.tracker.Start()
	w.opts.Analytics.Track(analytics.EventQuizStart, map[string]any{
		"quizId":       s.QuizID,
		"source":       w.opts.Source,
		"utm_source":   s.UTM.Source,
		"utm_campaign": s.UTM.Campaign,
	})

	req := model.StartRequest{
		QuizID: s.QuizID,
		Source: w.opts.Source,
		UTM:    s.UTM,
		Device: w.opts.Device,
	}
	w.spawn(func() {
		ctx, cancel := w.callContext()
		defer cancel()
		id, err := w.opts.Gateway.StartSession(ctx, req)
		if err != nil || id == "" {
			w.log.Warn("session start failed, continuing locally", zap.Error(err))
			return
		}
		w.sessionStarted(id)
	})
	return nil
}

// Answer records value for the current question. Multi-choice answers toggle.
func (w *Wizard) Answer(questionID, value string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	now := w.opts.Clock.Now()
	prev := w.state
	t := w.reducer.Reduce(prev, Answered{QuestionID: questionID, Value: value, At: now})
	if t.Err != nil {
		w.mu.Unlock()
		return t.Err
	}
	w.state = t.State
	q, _ := prev.Current()

	w.cancelAutoLocked()
	if q.Type.AutoAdvances() && !q.ManualConfirm {
		delay := w.opts.Timings.AutoAdvance
		if t.Expanded {
			delay = w.opts.Timings.ExpansionAdvance
		}
		w.scheduleAutoLocked(delay, prev.Step, q.ID)
	}
	sid := w.state.SessionID
	resp := w.state.Responses[q.ID]
	elapsed := now.Sub(w.shownAt).Milliseconds()
	w.mu.Unlock()

	kind := model.InteractionSelection
	if q.Type.MultiValued() && !resp.Contains(value) {
		kind = model.InteractionDeselect
	}
	w.tracker.Record(model.MicroInteraction{
		QuestionID: q.ID,
		Type:       kind,
		Element:    value,
		DurationMs: elapsed,
	})
	w.opts.Analytics.Track(analytics.EventQuestionAnswered, map[string]any{
		"quizId":         prev.QuizID,
		"sessionId":      sid,
		"questionId":     q.ID,
		"questionType":   string(q.Type),
		"value":          value,
		"step":           prev.Step,
		"responseTimeMs": elapsed,
		"expanded":       t.Expanded,
	})

	if sid == "" {
		return nil
	}
	req := model.AnswerRequest{
		SessionID:       sid,
		QuestionID:      q.ID,
		QuestionType:    q.Type,
		Value:           resp,
		ResponseTimeMs:  elapsed,
		ClientAttemptID: ulid.Make().String(),
		Metadata: map[string]string{
			"step":   strconv.Itoa(prev.Step),
			"action": string(kind),
		},
	}
	w.spawn(func() {
		ctx, cancel := w.callContext()
		defer cancel()
		if err := w.opts.Gateway.RecordAnswer(ctx, req); err != nil {
			w.log.Warn("answer mirror failed", zap.String("sessionId", sid),
				zap.String("questionId", req.QuestionID), zap.Error(err))
		}
	})
	return nil
}

// Advance moves to the next question, or submits from the last one.
// It returns ErrAnswerRequired when the current question still needs an answer.
func (w *Wizard) Advance() error {
	return w.navigate(forward, "next", nil)
}

// Continue is the explicit confirmation used by questions that never auto-advance
func (w *Wizard) Continue() error {
	return w.navigate(forward, "continue", nil)
}

// Retreat moves back one question. It is a no-op on the first question.
func (w *Wizard) Retreat() error {
	return w.navigate(back, "back", nil)
}

// Swipe turns a horizontal drag into navigation. Forward swipes on an
// unanswered required question are ignored.
func (w *Wizard) Swipe(g Gesture) error {
	dir := ClassifySwipe(g, w.opts.Timings.SwipeThreshold)
	if dir == SwipeNone {
		return nil
	}
	w.tracker.Record(model.MicroInteraction{
		Type:    model.InteractionSwipe,
		Element: dir.String(),
	})
	if dir == SwipePrevious {
		return w.navigate(back, "swipe", nil)
	}
	return w.navigate(forward, "swipe", func(s State) bool {
		return s.Status == StatusActive && s.Answerable()
	})
}

// Interact records a UI telemetry event such as a hover
func (w *Wizard) Interact(ev model.MicroInteraction) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	w.tracker.Record(ev)
}

// Snapshot returns a copy of the current state
func (w *Wizard) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

// Status returns the current state machine status
func (w *Wizard) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Status
}

// Done is closed once submission has produced an outcome
func (w *Wizard) Done() <-chan struct{} {
	return w.done
}

// Outcome returns the submission outcome once available
func (w *Wizard) Outcome() (Outcome, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.outcome == nil {
		return Outcome{}, false
	}
	return *w.outcome, true
}

// Close clears every pending timer and flushes buffered telemetry.
// In-flight mirror calls are left to finish.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cancelAutoLocked()
	w.mu.Unlock()

	w.tracker.Stop()
	w.tracker.Flush()
}

// Wait blocks until every spawned mirror call has returned. Call it after Close.
func (w *Wizard) Wait() {
	w.inflight.Wait()
}

func (w *Wizard) navigate(dir direction, via string, guard func(State) bool) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if guard != nil && !guard(w.state) {
		w.mu.Unlock()
		return nil
	}
	now := w.opts.Clock.Now()
	var ev Event = Advanced{At: now}
	if dir == back {
		ev = Retreated{At: now}
	}
	t := w.reducer.Reduce(w.state, ev)
	if t.Err != nil {
		w.mu.Unlock()
		return t.Err
	}
	if !t.Changed {
		w.mu.Unlock()
		return nil
	}
	w.cancelAutoLocked()
	w.state = t.State
	w.shownAt = now
	s := w.state.Clone()
	w.mu.Unlock()

	if q, ok := s.Current(); ok && !t.Submit {
		w.tracker.SetQuestion(q.ID)
	}
	w.tracker.Record(model.MicroInteraction{
		Type:    model.InteractionNavigate,
		Element: dir.String() + ":" + via,
	})
	w.patchProgress(s)
	if t.Submit {
		w.submit(s)
	}
	return nil
}

func (w *Wizard) scheduleAutoLocked(d time.Duration, step int, questionID string) {
	w.autoGen++
	gen := w.autoGen
	w.autoTimer = w.opts.Clock.AfterFunc(d, func() { w.autoAdvance(gen, step, questionID) })
}

func (w *Wizard) cancelAutoLocked() {
	if w.autoTimer != nil {
		w.autoTimer.Stop()
		w.autoTimer = nil
	}
	w.autoGen++
}

func (w *Wizard) autoAdvance(gen uint64, step int, questionID string) {
	err := w.navigate(forward, "auto", func(s State) bool {
		if gen != w.autoGen {
			return false
		}
		q, ok := s.Current()
		return ok && s.Status == StatusActive && s.Step == step && q.ID == questionID
	})
	if err != nil {
		w.log.Debug("auto-advance skipped", zap.String("questionId", questionID), zap.Error(err))
	}
}

func (w *Wizard) sessionStarted(id string) {
	w.mu.Lock()
	t := w.reducer.Reduce(w.state, SessionStarted{SessionID: id})
	w.state = t.State
	w.mu.Unlock()

	if t.Changed {
		w.tracker.SetSession(id)
		w.log.Debug("session started", zap.String("sessionId", id))
	}
}

func (w *Wizard) patchProgress(s State) {
	if s.SessionID == "" {
		return
	}
	patch := model.ProgressPatch{
		SessionID:   s.SessionID,
		CurrentStep: s.Step,
		Responses:   s.Responses,
		Status:      s.Status.SessionStatus(),
	}
	w.spawn(func() {
		ctx, cancel := w.callContext()
		defer cancel()
		if err := w.opts.Gateway.PatchProgress(ctx, patch); err != nil {
			w.log.Warn("progress mirror failed", zap.String("sessionId", patch.SessionID), zap.Error(err))
		}
	})
}

func (w *Wizard) submit(s State) {
	w.tracker.Stop()
	w.tracker.Flush()
	w.spawn(func() {
		w.finish(w.complete(s))
	})
}

func (w *Wizard) complete(s State) Outcome {
	if s.SessionID != "" {
		ctx, cancel := w.callContext()
		res, err := w.opts.Gateway.CompleteSession(ctx, s.SessionID)
		cancel()
		if err == nil {
			props := map[string]any{
				"quizId":    s.QuizID,
				"sessionId": s.SessionID,
				"degraded":  false,
			}
			if res != nil {
				props["score"] = res.Score
				props["recommendation"] = res.Recommendation
			}
			w.opts.Analytics.Track(analytics.EventQuizCompleted, props)
			return Outcome{
				RedirectURL: w.redirect("session", s.SessionID),
				SessionID:   s.SessionID,
				Result:      res,
			}
		}
		w.log.Warn("session completion failed, falling back to local snapshot",
			zap.String("sessionId", s.SessionID), zap.Error(err))
	}

	w.saveSnapshot(s)
	w.opts.Analytics.Track(analytics.EventQuizCompleted, map[string]any{
		"quizId":   s.QuizID,
		"degraded": true,
	})
	return Outcome{
		RedirectURL: w.redirect("mode", "local"),
		Degraded:    true,
	}
}

func (w *Wizard) saveSnapshot(s State) {
	if w.opts.Store == nil {
		w.log.Warn("no local store configured, responses not saved")
		return
	}
	ctx, cancel := w.callContext()
	defer cancel()

	entries := []struct {
		key string
		val any
	}{
		{KeyResponses, s.Responses},
		{KeyUTM, s.UTM},
	}
	for _, e := range entries {
		raw, err := json.Marshal(e.val)
		if err != nil {
			w.log.Error("encode local snapshot", zap.String("key", e.key), zap.Error(err))
			continue
		}
		if err := w.opts.Store.Put(ctx, e.key, raw); err != nil {
			w.log.Error("write local snapshot", zap.String("key", e.key), zap.Error(err))
		}
	}
}

func (w *Wizard) finish(out Outcome) {
	w.mu.Lock()
	t := w.reducer.Reduce(w.state, Completed{At: w.opts.Clock.Now()})
	if t.Err == nil {
		w.state = t.State
	}
	if w.outcome != nil {
		w.mu.Unlock()
		return
	}
	w.outcome = &out
	close(w.done)
	cb := w.opts.OnComplete
	w.mu.Unlock()

	w.log.Info("quiz submitted", zap.String("redirect", out.RedirectURL), zap.Bool("degraded", out.Degraded))
	if cb != nil {
		cb(out)
	}
}

func (w *Wizard) redirect(key, value string) string {
	base := w.opts.ResultsURL
	if base == "" {
		base = w.cat.ResultsPath()
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + key + "=" + url.QueryEscape(value)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func (w *Wizard) hesitated(questionID string) {
	w.mu.Lock()
	sid := w.state.SessionID
	quizID := w.state.QuizID
	w.mu.Unlock()

	props := map[string]any{
		"quizId":     quizID,
		"sessionId":  sid,
		"questionId": questionID,
	}
	w.opts.Analytics.Track(analytics.EventHesitationDetected, props)
	if w.opts.OnHesitation != nil {
		w.opts.OnHesitation(questionID)
		w.opts.Analytics.Track(analytics.EventInterventionShown, props)
	}
}

func (w *Wizard) suppressHesitation() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || w.state.Status != StatusActive
}

func (w *Wizard) spawn(f func()) {
	w.inflight.Add(1)
	w.opts.Spawn(func() {
		defer w.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("mirror call panicked", zap.Any("panic", r))
			}
		}()
		f()
	})
}

func (w *Wizard) callContext() (context.Context, context.CancelFunc) {
	w.mu.Lock()
	base := w.baseCtx
	w.mu.Unlock()
	return context.WithTimeout(base, w.opts.Timings.CallTimeout)
}
