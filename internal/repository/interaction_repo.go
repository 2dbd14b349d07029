package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quizflow/internal/model"
)

// InteractionRepo stores raw telemetry batches, one document per flush
type InteractionRepo interface {
	InsertBatch(ctx context.Context, batch *model.InteractionBatch) error
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

type interactionRepo struct {
	collection *mongo.Collection
}

func NewInteractionRepo(db *mongo.Database) InteractionRepo {
	return &interactionRepo{
		collection: db.Collection("quiz_interactions"),
	}
}

func (r *interactionRepo) InsertBatch(ctx context.Context, batch *model.InteractionBatch) error {
	_, err := r.collection.InsertOne(ctx, batch)
	return err
}

func (r *interactionRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"sessionId": sessionID})
}
