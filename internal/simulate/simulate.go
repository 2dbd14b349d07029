// Package simulate drives a wizard through a scripted run, the way a quiz
// taker would click through it.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"quizflow/internal/catalog"
	"quizflow/internal/wizard"
)

var ErrMissingAnswer = errors.New("no scripted answer")

// Script answers questions by id. Multi-choice questions list every value to select.
type Script map[string][]string

// ParseScript reads "question=value" pairs. Values are split on "|".
func ParseScript(pairs []string) (Script, error) {
	s := Script{}
	for _, p := range pairs {
		id, vals, ok := strings.Cut(p, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid answer %q, want question=value", p)
		}
		for _, v := range strings.Split(vals, "|") {
			if v = strings.TrimSpace(v); v != "" {
				s[id] = append(s[id], v)
			}
		}
	}
	return s, nil
}

// Questions lists the scripted question ids, sorted
func (s Script) Questions() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Config bounds a run
type Config struct {
	// SessionWait is how long to wait for the backend session before answering locally
	SessionWait time.Duration
	// Timeout caps the whole run including submission
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionWait <= 0 {
		c.SessionWait = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Result is one finished run
type Result struct {
	Outcome   wizard.Outcome `json:"outcome"`
	Questions []string       `json:"questions"`
	Elapsed   time.Duration  `json:"elapsedNs"`
}

// Run answers every question in order and confirms it, then waits for the outcome.
// Optional questions without a scripted answer are skipped.
func Run(ctx context.Context, cat *catalog.Catalog, opts wizard.Options, script Script, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	w := wizard.New(cat, opts)
	defer func() {
		w.Close()
		w.Wait()
	}()

	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	waitSession(ctx, w, cfg.SessionWait)

	var asked []string
	for w.Status() == wizard.StatusActive {
		s := w.Snapshot()
		q, ok := s.Current()
		if !ok {
			break
		}
		asked = append(asked, q.ID)

		values := script[q.ID]
		if len(values) == 0 && q.Required {
			return nil, fmt.Errorf("%w for required question %q", ErrMissingAnswer, q.ID)
		}
		for _, v := range values {
			if err := w.Answer(q.ID, v); err != nil {
				return nil, fmt.Errorf("answer %s=%s: %w", q.ID, v, err)
			}
		}
		if err := w.Continue(); err != nil {
			return nil, fmt.Errorf("continue from %s: %w", q.ID, err)
		}
		if len(asked) > 1000 {
			return nil, errors.New("question sequence does not terminate")
		}
	}

	select {
	case <-w.Done():
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for submission: %w", ctx.Err())
	}
	out, _ := w.Outcome()
	return &Result{Outcome: out, Questions: asked, Elapsed: time.Since(start)}, nil
}

func waitSession(ctx context.Context, w *wizard.Wizard, wait time.Duration) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for w.Snapshot().SessionID == "" {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}
