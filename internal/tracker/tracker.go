// Package tracker buffers quiz micro interactions, flushes them in batches and
// watches for hesitation.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizflow/internal/clock"
	"quizflow/internal/model"
)

// Flusher delivers one batch. Delivery is at most once: the batch is gone
// from the buffer whether or not this returns an error.
type Flusher func(ctx context.Context, sessionID string, batch []model.MicroInteraction) error

// Config holds tracker timings and limits
type Config struct {
	FlushInterval   time.Duration
	HesitationAfter time.Duration
	MaxBuffer       int // oldest events are dropped beyond this
	CallTimeout     time.Duration
}

// DefaultConfig returns the observed production timings
func DefaultConfig() Config {
	return Config{
		FlushInterval:   5 * time.Second,
		HesitationAfter: 30 * time.Second,
		MaxBuffer:       500,
		CallTimeout:     10 * time.Second,
	}
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// WithSpawner sets how flushes are run. The default is a new goroutine.
func WithSpawner(spawn func(func())) Option {
	return func(t *Tracker) { t.spawn = spawn }
}

// WithHesitationHandler is called with the current question id when the user goes quiet
func WithHesitationHandler(fn func(questionID string)) Option {
	return func(t *Tracker) { t.onHesitation = fn }
}

// WithSuppression stops hesitation prompts while fn reports true, e.g. during submission
func WithSuppression(fn func() bool) Option {
	return func(t *Tracker) { t.suppressed = fn }
}

// Tracker is the interaction side channel of one wizard instance
type Tracker struct {
	mu sync.Mutex

	cfg   Config
	clock clock.Clock
	flush Flusher
	spawn func(func())
	log   *zap.Logger

	onHesitation func(questionID string)
	suppressed   func() bool

	buf             []model.MicroInteraction
	dropped         int
	sessionID       string
	questionID      string
	lastInteraction time.Time

	running         bool
	flushTimer      clock.Timer
	hesitationTimer clock.Timer
	hesitationGen   uint64
}

// New creates a stopped tracker
func New(cfg Config, clk clock.Clock, flush Flusher, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.HesitationAfter <= 0 {
		cfg.HesitationAfter = def.HesitationAfter
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = def.MaxBuffer
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	t := &Tracker{
		cfg:   cfg,
		clock: clk,
		flush: flush,
		log:   zap.NewNop(),
		spawn: func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start arms the flush and hesitation timers
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.lastInteraction = t.clock.Now()
	t.flushTimer = t.clock.AfterFunc(t.cfg.FlushInterval, t.tick)
	t.armHesitationLocked()
}

// Stop clears both timers. Buffered events are kept until the next explicit Flush.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.flushTimer != nil {
		t.flushTimer.Stop()
		t.flushTimer = nil
	}
	if t.hesitationTimer != nil {
		t.hesitationTimer.Stop()
		t.hesitationTimer = nil
	}
}

// SetSession sets the session id stamped on events and used for flushes
func (t *Tracker) SetSession(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = id
}

// SetQuestion sets the question the user is looking at
func (t *Tracker) SetQuestion(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.questionID = id
}

// Record buffers an event and restarts the hesitation countdown
func (t *Tracker) Record(ev model.MicroInteraction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(ev)
	t.lastInteraction = t.clock.Now()
	if t.running {
		t.armHesitationLocked()
	}
}

// Touch restarts the hesitation countdown without recording anything
func (t *Tracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastInteraction = t.clock.Now()
	if t.running {
		t.armHesitationLocked()
	}
}

// Flush hands the buffered batch to the flusher and empties the buffer.
// Without a session id the batch is dropped.
func (t *Tracker) Flush() {
	t.mu.Lock()
	if len(t.buf) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.buf
	t.buf = nil
	sid := t.sessionID
	t.mu.Unlock()

	if sid == "" || t.flush == nil {
		t.log.Debug("dropping interaction batch without session", zap.Int("events", len(batch)))
		return
	}
	for i := range batch {
		if batch[i].SessionID == "" {
			batch[i].SessionID = sid
		}
	}
	t.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.CallTimeout)
		defer cancel()
		if err := t.flush(ctx, sid, batch); err != nil {
			t.log.Warn("interaction flush failed, batch dropped",
				zap.String("sessionId", sid), zap.Int("events", len(batch)), zap.Error(err))
		}
	})
}

// Buffered returns the number of events waiting for the next flush
func (t *Tracker) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

// Dropped returns how many events were discarded because the buffer was full
func (t *Tracker) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// LastInteraction returns when the user last did anything
func (t *Tracker) LastInteraction() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastInteraction
}

func (t *Tracker) appendLocked(ev model.MicroInteraction) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.clock.Now()
	}
	if ev.QuestionID == "" {
		ev.QuestionID = t.questionID
	}
	if ev.SessionID == "" {
		ev.SessionID = t.sessionID
	}
	if len(t.buf) >= t.cfg.MaxBuffer {
		over := len(t.buf) - t.cfg.MaxBuffer + 1
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
		t.dropped += over
	}
	t.buf = append(t.buf, ev)
}

func (t *Tracker) tick() {
	t.Flush()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.flushTimer = t.clock.AfterFunc(t.cfg.FlushInterval, t.tick)
	}
}

func (t *Tracker) armHesitationLocked() {
	if t.hesitationTimer != nil {
		t.hesitationTimer.Stop()
	}
	t.hesitationGen++
	gen := t.hesitationGen
	t.hesitationTimer = t.clock.AfterFunc(t.cfg.HesitationAfter, func() { t.hesitate(gen) })
}

func (t *Tracker) hesitate(gen uint64) {
	t.mu.Lock()
	if !t.running || t.hesitationGen != gen {
		t.mu.Unlock()
		return
	}
	t.hesitationTimer = nil
	qid := t.questionID
	idle := t.clock.Now().Sub(t.lastInteraction)
	t.mu.Unlock()

	if t.suppressed != nil && t.suppressed() {
		return
	}

	t.mu.Lock()
	t.appendLocked(model.MicroInteraction{
		QuestionID: qid,
		Type:       model.InteractionHesitation,
		DurationMs: idle.Milliseconds(),
	})
	t.mu.Unlock()

	if t.onHesitation != nil {
		t.onHesitation(qid)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running && t.hesitationTimer == nil {
		t.armHesitationLocked()
	}
}
