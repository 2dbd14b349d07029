package service

// Live event types pushed to ops subscribers
const (
	EventSessionStarted   = "session_started"
	EventQuestionAnswered = "question_answered"
	EventHesitation       = "hesitation_detected"
	EventSessionCompleted = "session_completed"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	Broadcast(quizID string, msgType string, payload interface{})
}
