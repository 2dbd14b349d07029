package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type indexSpec struct {
	collection string
	keys       bson.D
	unique     bool
}

var quizIndexes = []indexSpec{
	{"quiz_sessions", bson.D{{Key: "quizId", Value: 1}, {Key: "startedAt", Value: -1}}, false},
	{"quiz_answers", bson.D{{Key: "sessionId", Value: 1}, {Key: "answeredAt", Value: 1}}, false},
	{"quiz_answers", bson.D{{Key: "sessionId", Value: 1}, {Key: "clientAttemptId", Value: 1}}, true},
	{"quiz_interactions", bson.D{{Key: "sessionId", Value: 1}}, false},
}

// EnsureIndexes creates the indexes the repositories query by.
// Failures are logged and the remaining indexes are still attempted.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log *zap.Logger) int {
	failed := 0
	for _, spec := range quizIndexes {
		coll := db.Collection(spec.collection)
		opts := options.Index().SetUnique(spec.unique)
		if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: spec.keys, Options: opts}); err != nil {
			failed++
			log.Warn("failed to create index",
				zap.String("collection", spec.collection),
				zap.Error(err))
		}
	}
	log.Info("indexes ensured", zap.Int("failed", failed))
	return failed
}
