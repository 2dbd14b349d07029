package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizflow/internal/model"
)

var ErrSessionNotFound = errors.New("quiz session not found")

type SessionRepo interface {
	Create(ctx context.Context, session *model.QuizSession) error
	GetByID(ctx context.Context, id string) (*model.QuizSession, error)
	UpdateProgress(ctx context.Context, patch model.ProgressPatch, at time.Time) error
	Complete(ctx context.Context, id string, result *model.CompletionResult, at time.Time) error
	AddInteractions(ctx context.Context, id string, n int, at time.Time) error
	ListByQuiz(ctx context.Context, quizID string, limit int64) ([]*model.QuizSession, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("quiz_sessions"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.QuizSession) error {
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.QuizSession, error) {
	var session model.QuizSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateProgress(ctx context.Context, patch model.ProgressPatch, at time.Time) error {
	set := bson.M{
		"currentStep":  patch.CurrentStep,
		"lastActivity": at,
	}
	if patch.Responses != nil {
		set["responses"] = patch.Responses
	}
	if patch.Status != "" {
		set["status"] = patch.Status
	}
	return r.update(ctx, patch.SessionID, bson.M{"$set": set})
}

func (r *sessionRepo) Complete(ctx context.Context, id string, result *model.CompletionResult, at time.Time) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"status":       model.SessionCompleted,
		"result":       result,
		"completedAt":  at,
		"lastActivity": at,
	}})
}

func (r *sessionRepo) AddInteractions(ctx context.Context, id string, n int, at time.Time) error {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"interactionCount": n},
		"$set": bson.M{"lastActivity": at},
	})
}

func (r *sessionRepo) ListByQuiz(ctx context.Context, quizID string, limit int64) ([]*model.QuizSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"quizId": quizID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.QuizSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) update(ctx context.Context, id string, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}
