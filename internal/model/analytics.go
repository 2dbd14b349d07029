package model

import "time"

// Funnel is the per-quiz conversion summary shown in the ops portal
type Funnel struct {
	QuizID          string           `json:"quizId"`
	Starts          int64            `json:"starts"`
	Completions     int64            `json:"completions"`
	CompletionRate  float64          `json:"completionRate"`
	Hesitations     int64            `json:"hesitations"`
	QuestionAnswers map[string]int64 `json:"questionAnswers"` // question id -> answers recorded
	TopBrands       []BrandCount     `json:"topBrands"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// BrandCount is a brand with its selection count
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
	Rank  int    `json:"rank"`
}

// LiveEvent is pushed to ops portal subscribers
type LiveEvent struct {
	Type      string         `json:"type"`
	QuizID    string         `json:"quizId"`
	SessionID string         `json:"sessionId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}
