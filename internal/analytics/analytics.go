// Package analytics is the quiz's analytics side channel: named events with a flat property bag.
package analytics

import (
	"maps"
	"sync"

	"go.uber.org/zap"
)

// Event names fired by the quiz flow
const (
	EventQuizStart          = "quiz_start"
	EventQuestionAnswered   = "question_answered"
	EventHesitationDetected = "hesitation_detected"
	EventInterventionShown  = "intervention_shown"
	EventQuizCompleted      = "quiz_completed"
)

// Sink receives analytics events. Implementations must not block.
type Sink interface {
	Track(name string, props map[string]any)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(name string, props map[string]any)

func (f SinkFunc) Track(name string, props map[string]any) { f(name, props) }

// Nop drops every event
var Nop Sink = SinkFunc(func(string, map[string]any) {})

// Multi fans an event out to several sinks
type Multi []Sink

func (m Multi) Track(name string, props map[string]any) {
	for _, s := range m {
		s.Track(name, props)
	}
}

// LogSink writes events to a zap logger
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink that logs at info level
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Track(name string, props map[string]any) {
	s.log.Info("analytics event", zap.String("event", name), zap.Any("props", props))
}

// Event is a recorded analytics event
type Event struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"props,omitempty"`
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(name string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Props: maps.Clone(props)})
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events named name were recorded
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}
