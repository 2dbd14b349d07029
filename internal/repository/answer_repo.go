package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizflow/internal/model"
)

type AnswerRepo interface {
	Create(ctx context.Context, answer *model.Answer) error
	GetBySessionID(ctx context.Context, sessionID string) ([]*model.Answer, error)
	ExistsAttempt(ctx context.Context, sessionID, clientAttemptID string) (bool, error)
}

type answerRepo struct {
	collection *mongo.Collection
}

func NewAnswerRepo(db *mongo.Database) AnswerRepo {
	return &answerRepo{
		collection: db.Collection("quiz_answers"),
	}
}

func (r *answerRepo) Create(ctx context.Context, answer *model.Answer) error {
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, answer)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		answer.ID = oid.Hex()
	}
	return nil
}

func (r *answerRepo) GetBySessionID(ctx context.Context, sessionID string) ([]*model.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "answeredAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []*model.Answer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// ExistsAttempt backs the Redis idempotency check when the key has expired
func (r *answerRepo) ExistsAttempt(ctx context.Context, sessionID, clientAttemptID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"sessionId":       sessionID,
		"clientAttemptId": clientAttemptID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
