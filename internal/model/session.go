package model

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitting SessionStatus = "submitting"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// UTMParams are captured once from the entry URL
type UTMParams struct {
	Source   string `json:"utm_source,omitempty" bson:"source,omitempty"`
	Medium   string `json:"utm_medium,omitempty" bson:"medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty" bson:"campaign,omitempty"`
	Term     string `json:"utm_term,omitempty" bson:"term,omitempty"`
	Content  string `json:"utm_content,omitempty" bson:"content,omitempty"`
}

// DeviceInfo describes the client that runs the quiz
type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Platform  string `json:"platform,omitempty" bson:"platform,omitempty"`
	Width     int    `json:"screenWidth,omitempty" bson:"screenWidth,omitempty"`
	Height    int    `json:"screenHeight,omitempty" bson:"screenHeight,omitempty"`
	Touch     bool   `json:"touch,omitempty" bson:"touch,omitempty"`
	Language  string `json:"language,omitempty" bson:"language,omitempty"`
}

// QuizSession is the backend record of one quiz run
type QuizSession struct {
	ID            string              `json:"id" bson:"_id"`
	QuizID        string              `json:"quizId" bson:"quizId"`
	Source        string              `json:"source" bson:"source"`
	UTM           UTMParams           `json:"utmParams" bson:"utm"`
	Device        DeviceInfo          `json:"deviceInfo" bson:"device"`
	Status        SessionStatus       `json:"status" bson:"status"`
	CurrentStep   int                 `json:"currentStep" bson:"currentStep"`
	Responses     map[string]Response `json:"responses" bson:"responses"`
	Result        *CompletionResult   `json:"result,omitempty" bson:"result,omitempty"`
	StartedAt     time.Time           `json:"startedAt" bson:"startedAt"`
	LastActivity  time.Time           `json:"lastActivity" bson:"lastActivity"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	InteractionsN int                 `json:"interactionCount" bson:"interactionCount"`
}

// StartRequest opens a session
type StartRequest struct {
	QuizID string     `json:"quizIdentifier"`
	Source string     `json:"source"`
	UTM    UTMParams  `json:"utmParams"`
	Device DeviceInfo `json:"deviceInfo"`
}

// StartResponse carries the session id and the token for later mirror calls
type StartResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// ProgressPatch mirrors navigation state
type ProgressPatch struct {
	SessionID   string              `json:"sessionId"`
	CurrentStep int                 `json:"currentStep"`
	Responses   map[string]Response `json:"responses"`
	Status      SessionStatus       `json:"status"`
}

// CompleteRequest ends a session
type CompleteRequest struct {
	SessionID string `json:"sessionId"`
}

// CompletionResult is returned by the complete call and consumed for analytics and the results page
type CompletionResult struct {
	SessionID      string `json:"sessionId" bson:"sessionId"`
	Score          int    `json:"score" bson:"score"`
	Recommendation string `json:"recommendation" bson:"recommendation"`
	ServiceLine    string `json:"serviceLine" bson:"serviceLine"`
	Brand          string `json:"brand,omitempty" bson:"brand,omitempty"`
}
