package wizard

import (
	"time"

	"go.uber.org/zap"

	"quizflow/internal/analytics"
	"quizflow/internal/clock"
	"quizflow/internal/model"
)

// Timings holds every delay the wizard schedules
type Timings struct {
	AutoAdvance      time.Duration `yaml:"auto_advance"`
	ExpansionAdvance time.Duration `yaml:"expansion_advance"` // auto-advance after the answer grew the sequence
	FlushInterval    time.Duration `yaml:"flush_interval"`
	Hesitation       time.Duration `yaml:"hesitation"`
	MaxBuffer        int           `yaml:"max_buffer"`
	SwipeThreshold   float64       `yaml:"swipe_threshold"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// DefaultTimings mirrors the production quiz
func DefaultTimings() Timings {
	return Timings{
		AutoAdvance:      500 * time.Millisecond,
		ExpansionAdvance: 800 * time.Millisecond,
		FlushInterval:    5 * time.Second,
		Hesitation:       30 * time.Second,
		MaxBuffer:        500,
		SwipeThreshold:   DefaultSwipeThreshold,
		CallTimeout:      10 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	if t.AutoAdvance <= 0 {
		t.AutoAdvance = def.AutoAdvance
	}
	if t.ExpansionAdvance <= 0 {
		t.ExpansionAdvance = def.ExpansionAdvance
	}
	if t.FlushInterval <= 0 {
		t.FlushInterval = def.FlushInterval
	}
	if t.Hesitation <= 0 {
		t.Hesitation = def.Hesitation
	}
	if t.MaxBuffer <= 0 {
		t.MaxBuffer = def.MaxBuffer
	}
	if t.SwipeThreshold <= 0 {
		t.SwipeThreshold = def.SwipeThreshold
	}
	if t.CallTimeout <= 0 {
		t.CallTimeout = def.CallTimeout
	}
	return t
}

// Outcome is where the user lands after submission
type Outcome struct {
	RedirectURL string                  `json:"redirectUrl"`
	SessionID   string                  `json:"sessionId,omitempty"`
	Degraded    bool                    `json:"degraded"` // completed from the local snapshot
	Result      *model.CompletionResult `json:"result,omitempty"`
}

// Options configures a Wizard. Zero values fall back to working defaults.
type Options struct {
	Gateway   Gateway
	Store     LocalStore
	Analytics analytics.Sink
	Clock     clock.Clock
	Logger    *zap.Logger
	// Spawn runs fire-and-forget work. Tests pass a synchronous spawner.
	Spawn   func(func())
	Timings Timings

	Source     string
	UTM        model.UTMParams
	Device     model.DeviceInfo
	ResultsURL string // overrides the catalog's results path

	OnComplete   func(Outcome)
	OnHesitation func(questionID string)
}

func (o Options) withDefaults() Options {
	if o.Gateway == nil {
		o.Gateway = Offline{}
	}
	if o.Analytics == nil {
		o.Analytics = analytics.Nop
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Spawn == nil {
		o.Spawn = func(f func()) { go f() }
	}
	if o.Source == "" {
		o.Source = "web"
	}
	o.Timings = o.Timings.withDefaults()
	return o
}
