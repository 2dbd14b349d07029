// Package app wires the quiz backend from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"quizflow/internal/cache"
	"quizflow/internal/catalog"
	"quizflow/internal/config"
	"quizflow/internal/repository"
	"quizflow/internal/service"
	"quizflow/internal/transport/rest"
	"quizflow/internal/transport/ws"
)

// App holds the backend's live dependencies
type App struct {
	Catalogs *catalog.Registry

	SessionRepo     repository.SessionRepo
	AnswerRepo      repository.AnswerRepo
	InteractionRepo repository.InteractionRepo

	Progress cache.ProgressCache
	Brands   cache.BrandCache
	Funnel   cache.FunnelCache
	Attempts cache.AttemptCache

	Auth  *service.AuthService
	Quiz  *service.QuizService
	Stats *service.StatsService
	Hub   *ws.Hub

	Handler http.Handler

	mongo *mongo.Client
	redis *redis.Client
	log   *zap.Logger
}

// LoadCatalogs reads catalogs from dir, or the built-in ones when dir is empty
func LoadCatalogs(dir string) (*catalog.Registry, error) {
	if dir == "" {
		return catalog.LoadDefaults()
	}
	return catalog.LoadDir(dir)
}

// Connect dials Mongo and Redis, pings both and wires the backend
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	catalogs, err := LoadCatalogs(cfg.Catalog.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr()))

	db := mongoClient.Database(cfg.Mongo.Database)
	idxCtx, idxCancel := context.WithTimeout(ctx, 10*time.Second)
	repository.EnsureIndexes(idxCtx, db, log)
	idxCancel()

	a := New(cfg, catalogs, db, rdb, log)
	a.mongo = mongoClient
	return a, nil
}

// New wires repositories, caches, services and the router over open clients
func New(cfg *config.Config, catalogs *catalog.Registry, db *mongo.Database, rdb *redis.Client, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		Catalogs: catalogs,

		SessionRepo:     repository.NewSessionRepo(db),
		AnswerRepo:      repository.NewAnswerRepo(db),
		InteractionRepo: repository.NewInteractionRepo(db),

		Progress: cache.NewProgressCache(rdb, cfg.Redis.ProgressTTL),
		Brands:   cache.NewBrandCache(rdb),
		Funnel:   cache.NewFunnelCache(rdb),
		Attempts: cache.NewAttemptCache(rdb, cfg.Auth.SessionTTL),

		Auth: service.NewAuthService(cfg.Auth),
		Hub:  ws.NewHub(log),

		redis: rdb,
		log:   log,
	}

	a.Quiz = service.NewQuizService(catalogs, a.SessionRepo, a.AnswerRepo, a.InteractionRepo,
		a.Progress, a.Brands, a.Funnel, a.Attempts, a.Auth, log)
	a.Quiz.SetBroadcaster(a.Hub)
	a.Stats = service.NewStatsService(catalogs, a.Funnel, a.Brands)

	a.Handler = rest.NewRouter(&rest.Container{
		Auth:           a.Auth,
		Quiz:           a.Quiz,
		Stats:          a.Stats,
		WSHub:          a.Hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})
	return a
}

// Close stops the hub and disconnects the clients opened by Connect
func (a *App) Close(ctx context.Context) error {
	a.Hub.Close()
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
