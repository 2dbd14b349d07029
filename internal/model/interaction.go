package model

import "time"

// InteractionType classifies a micro interaction
type InteractionType string

const (
	InteractionHover      InteractionType = "hover"
	InteractionHesitation InteractionType = "hesitation"
	InteractionSelection  InteractionType = "selection"
	InteractionDeselect   InteractionType = "deselect"
	InteractionSwipe      InteractionType = "swipe"
	InteractionNavigate   InteractionType = "navigate"
)

// MicroInteraction is one fine-grained telemetry event
type MicroInteraction struct {
	SessionID  string          `json:"sessionId" bson:"sessionId"`
	Timestamp  time.Time       `json:"timestamp" bson:"timestamp"`
	QuestionID string          `json:"questionId" bson:"questionId"`
	Type       InteractionType `json:"type" bson:"type"`
	Element    string          `json:"element,omitempty" bson:"element,omitempty"`
	DurationMs int64           `json:"duration,omitempty" bson:"duration,omitempty"`
}

// InteractionBatch is what the tracker flushes
type InteractionBatch struct {
	SessionID    string             `json:"sessionId" bson:"sessionId"`
	Interactions []MicroInteraction `json:"interactions" bson:"interactions"`
	ReceivedAt   time.Time          `json:"-" bson:"receivedAt"`
}
