package wizard

import (
	"errors"
	"slices"
	"time"

	"quizflow/internal/catalog"
	"quizflow/internal/model"
)

// Status is the coarse state of the navigation state machine
type Status string

const (
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
)

// SessionStatus maps the wizard status onto the backend session status
func (s Status) SessionStatus() model.SessionStatus {
	switch s {
	case StatusSubmitting:
		return model.SessionSubmitting
	case StatusCompleted:
		return model.SessionCompleted
	default:
		return model.SessionInProgress
	}
}

var (
	ErrNotActive          = errors.New("wizard is not active")
	ErrNotCurrentQuestion = errors.New("question is not the current question")
	ErrAnswerRequired     = errors.New("current question requires an answer")
	ErrEmptyAnswer        = errors.New("empty answer")
	ErrUnknownOption      = errors.New("answer matches no option of the question")
	ErrClosed             = errors.New("wizard is closed")
)

// State is the session state of one wizard run.
// Values are treated as immutable: Reduce always returns a fresh copy.
type State struct {
	QuizID       string                    `json:"quizId"`
	SessionID    string                    `json:"sessionId,omitempty"` // empty until the gateway assigns one
	Status       Status                    `json:"status"`
	Step         int                       `json:"currentStep"`
	Sequence     []model.Question          `json:"-"`
	Responses    map[string]model.Response `json:"responses"`
	StartTime    time.Time                 `json:"startTime"`
	LastActivity time.Time                 `json:"lastActivity"`
	UTM          model.UTMParams           `json:"utmParams"`

	UserType      string `json:"userType,omitempty"`
	SelectedBrand string `json:"selectedBrand,omitempty"`
	ProjectType   string `json:"projectType,omitempty"`
}

// NewState builds the state of a fresh session
func NewState(c *catalog.Catalog, utm model.UTMParams, now time.Time) State {
	return State{
		QuizID:       c.ID(),
		Status:       StatusActive,
		Sequence:     c.InitialSequence(),
		Responses:    map[string]model.Response{},
		StartTime:    now,
		LastActivity: now,
		UTM:          utm,
	}
}

// Current returns the question at the current step
func (s State) Current() (model.Question, bool) {
	if s.Step < 0 || s.Step >= len(s.Sequence) {
		return model.Question{}, false
	}
	return s.Sequence[s.Step], true
}

// Answerable reports whether the current question may be left going forward
func (s State) Answerable() bool {
	q, ok := s.Current()
	if !ok {
		return false
	}
	if !q.Required {
		return true
	}
	return !s.Responses[q.ID].Empty()
}

// IsLast reports whether the current step is the last of the effective sequence
func (s State) IsLast() bool {
	return s.Step == len(s.Sequence)-1
}

// QuestionIDs lists the effective sequence
func (s State) QuestionIDs() []string {
	out := make([]string, len(s.Sequence))
	for i, q := range s.Sequence {
		out[i] = q.ID
	}
	return out
}

// Clone deep-copies the mutable parts of the state
func (s State) Clone() State {
	out := s
	out.Sequence = slices.Clone(s.Sequence)
	out.Responses = model.CloneResponses(s.Responses)
	return out
}

// Event is an input to the reducer
type Event interface {
	event()
}

// Answered is a response to the question identified by QuestionID
type Answered struct {
	QuestionID string
	Value      string
	At         time.Time
}

// Advanced moves forward one step, or into submission from the last step
type Advanced struct {
	At time.Time
}

// Retreated moves back one step
type Retreated struct {
	At time.Time
}

// SessionStarted records the id assigned by the backend
type SessionStarted struct {
	SessionID string
}

// Completed ends submission
type Completed struct {
	At time.Time
}

func (Answered) event()       {}
func (Advanced) event()       {}
func (Retreated) event()      {}
func (SessionStarted) event() {}
func (Completed) event()      {}

// Transition is the result of reducing one event
type Transition struct {
	State    State
	Changed  bool
	Expanded bool // the effective sequence was rewritten by branching
	Submit   bool // the state just entered submission
	Err      error
}

// Reducer is the pure session state machine for one catalog
type Reducer struct {
	Catalog *catalog.Catalog
}

// Reduce applies ev to s. s is never modified.
func (r Reducer) Reduce(s State, ev Event) Transition {
	switch ev := ev.(type) {
	case Answered:
		return r.answer(s, ev)
	case Advanced:
		return r.advance(s, ev)
	case Retreated:
		return r.retreat(s, ev)
	case SessionStarted:
		if s.SessionID != "" || ev.SessionID == "" {
			return Transition{State: s}
		}
		next := s.Clone()
		next.SessionID = ev.SessionID
		return Transition{State: next, Changed: true}
	case Completed:
		if s.Status != StatusSubmitting {
			return Transition{State: s, Err: ErrNotActive}
		}
		next := s.Clone()
		next.Status = StatusCompleted
		next.LastActivity = ev.At
		return Transition{State: next, Changed: true}
	}
	return Transition{State: s}
}

func (r Reducer) answer(s State, ev Answered) Transition {
	if s.Status != StatusActive {
		return Transition{State: s, Err: ErrNotActive}
	}
	q, ok := s.Current()
	if !ok || q.ID != ev.QuestionID {
		return Transition{State: s, Err: ErrNotCurrentQuestion}
	}
	if ev.Value == "" {
		return Transition{State: s, Err: ErrEmptyAnswer}
	}
	if len(q.Options) > 0 {
		if _, ok := q.Option(ev.Value); !ok {
			return Transition{State: s, Err: ErrUnknownOption}
		}
	}

	next := s.Clone()
	next.LastActivity = ev.At
	if q.Type.MultiValued() {
		toggled := next.Responses[q.ID].Toggle(ev.Value)
		if toggled.Empty() {
			delete(next.Responses, q.ID)
		} else {
			next.Responses[q.ID] = toggled
		}
		return Transition{State: next, Changed: true}
	}

	next.Responses[q.ID] = model.Scalar(ev.Value)
	switch q.Sets {
	case model.SetsUserType:
		next.UserType = ev.Value
	case model.SetsSelectedBrand:
		next.SelectedBrand = ev.Value
	case model.SetsProjectType:
		next.ProjectType = ev.Value
	}

	t := Transition{State: next, Changed: true}
	if r.Catalog != nil && r.Catalog.IsBranchPoint(q.ID) {
		seq, expanded := r.Catalog.Expand(next.Sequence, q.ID, ev.Value)
		if expanded {
			next.Sequence = seq
			t.State = next
			t.Expanded = true
		}
	}
	return t
}

func (r Reducer) advance(s State, ev Advanced) Transition {
	if s.Status != StatusActive {
		return Transition{State: s, Err: ErrNotActive}
	}
	if !s.Answerable() {
		return Transition{State: s, Err: ErrAnswerRequired}
	}
	next := s.Clone()
	next.LastActivity = ev.At
	if s.Step+1 < len(s.Sequence) {
		next.Step++
		return Transition{State: next, Changed: true}
	}
	next.Status = StatusSubmitting
	return Transition{State: next, Changed: true, Submit: true}
}

func (r Reducer) retreat(s State, ev Retreated) Transition {
	if s.Status != StatusActive {
		return Transition{State: s, Err: ErrNotActive}
	}
	if s.Step == 0 {
		return Transition{State: s}
	}
	next := s.Clone()
	next.Step--
	next.LastActivity = ev.At
	return Transition{State: next, Changed: true}
}
