package wizard

import (
	"context"
	"errors"

	"quizflow/internal/model"
)

// Keys of the local snapshot read by the results surface in degraded mode
const (
	KeyResponses = "quizResponses"
	KeyUTM       = "quizUtmParams"
)

// ErrOffline is returned by the Offline gateway for every call
var ErrOffline = errors.New("persistence gateway offline")

// Gateway mirrors session state to the backend. Every call is best effort:
// the wizard logs a returned error and keeps its local state as the source of truth.
type Gateway interface {
	StartSession(ctx context.Context, req model.StartRequest) (string, error)
	RecordAnswer(ctx context.Context, req model.AnswerRequest) error
	PatchProgress(ctx context.Context, patch model.ProgressPatch) error
	FlushInteractions(ctx context.Context, sessionID string, batch []model.MicroInteraction) error
	CompleteSession(ctx context.Context, sessionID string) (*model.CompletionResult, error)
}

// LocalStore is the durable key-value snapshot used when completion cannot reach the backend
type LocalStore interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Offline is a gateway with no backend. Sessions run fully local and always
// complete through the local snapshot.
type Offline struct{}

func (Offline) StartSession(context.Context, model.StartRequest) (string, error) {
	return "", ErrOffline
}

func (Offline) RecordAnswer(context.Context, model.AnswerRequest) error { return ErrOffline }

func (Offline) PatchProgress(context.Context, model.ProgressPatch) error { return ErrOffline }

func (Offline) FlushInteractions(context.Context, string, []model.MicroInteraction) error {
	return ErrOffline
}

func (Offline) CompleteSession(context.Context, string) (*model.CompletionResult, error) {
	return nil, ErrOffline
}
