package model

import (
	"slices"
	"time"
)

// Response is the stored answer to one question.
// Single-answer types use Value; multi-choice uses Values as an insertion-ordered set.
type Response struct {
	Value  string   `json:"value,omitempty" bson:"value,omitempty"`
	Values []string `json:"values,omitempty" bson:"values,omitempty"`
}

// Scalar builds a single-answer response
func Scalar(v string) Response {
	return Response{Value: v}
}

// Empty reports whether the response carries no answer
func (r Response) Empty() bool {
	return r.Value == "" && len(r.Values) == 0
}

// Contains reports whether v is selected
func (r Response) Contains(v string) bool {
	if r.Value == v && v != "" {
		return true
	}
	return slices.Contains(r.Values, v)
}

// Toggle flips membership of v in the set and returns the new response.
// The receiver is left untouched.
func (r Response) Toggle(v string) Response {
	out := Response{Values: make([]string, 0, len(r.Values)+1)}
	found := false
	for _, existing := range r.Values {
		if existing == v {
			found = true
			continue
		}
		out.Values = append(out.Values, existing)
	}
	if !found {
		out.Values = append(out.Values, v)
	}
	return out
}

// Selected returns every selected value regardless of question type
func (r Response) Selected() []string {
	if len(r.Values) > 0 {
		return slices.Clone(r.Values)
	}
	if r.Value != "" {
		return []string{r.Value}
	}
	return nil
}

// CloneResponses deep-copies a responses map
func CloneResponses(in map[string]Response) map[string]Response {
	out := make(map[string]Response, len(in))
	for k, v := range in {
		out[k] = Response{Value: v.Value, Values: slices.Clone(v.Values)}
	}
	return out
}

// AnswerRequest is the mirror payload sent after every answer
type AnswerRequest struct {
	SessionID       string            `json:"sessionId"`
	QuestionID      string            `json:"questionId"`
	QuestionType    QuestionType      `json:"questionType"`
	Value           Response          `json:"value"`
	ResponseTimeMs  int64             `json:"responseTimeMs"`
	ClientAttemptID string            `json:"clientAttemptId"` // idempotency key
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Answer is a persisted per-question answer
type Answer struct {
	ID              string            `json:"id" bson:"_id,omitempty"`
	SessionID       string            `json:"sessionId" bson:"sessionId"`
	QuizID          string            `json:"quizId" bson:"quizId"`
	QuestionID      string            `json:"questionId" bson:"questionId"`
	QuestionType    QuestionType      `json:"questionType" bson:"questionType"`
	Response        Response          `json:"response" bson:"response"`
	ResponseTimeMs  int64             `json:"responseTimeMs" bson:"responseTimeMs"`
	ClientAttemptID string            `json:"clientAttemptId" bson:"clientAttemptId"`
	Metadata        map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	AnsweredAt      time.Time         `json:"answeredAt" bson:"answeredAt"`
}
