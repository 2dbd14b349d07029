package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizflow/internal/cache"
	"quizflow/internal/catalog"
	"quizflow/internal/model"
	"quizflow/internal/repository"
)

var ErrSessionClosed = errors.New("quiz session already completed")

// QuizService owns the backend side of quiz sessions
type QuizService struct {
	catalogs     *catalog.Registry
	sessionRepo  repository.SessionRepo
	answerRepo   repository.AnswerRepo
	interactions repository.InteractionRepo
	progress     cache.ProgressCache
	brands       cache.BrandCache
	funnel       cache.FunnelCache
	attempts     cache.AttemptCache
	auth         *AuthService
	broadcaster  Broadcaster
	log          *zap.Logger
	now          func() time.Time
}

// NewQuizService creates a new quiz service
func NewQuizService(
	catalogs *catalog.Registry,
	sessionRepo repository.SessionRepo,
	answerRepo repository.AnswerRepo,
	interactions repository.InteractionRepo,
	progress cache.ProgressCache,
	brands cache.BrandCache,
	funnel cache.FunnelCache,
	attempts cache.AttemptCache,
	auth *AuthService,
	log *zap.Logger,
) *QuizService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		catalogs:     catalogs,
		sessionRepo:  sessionRepo,
		answerRepo:   answerRepo,
		interactions: interactions,
		progress:     progress,
		brands:       brands,
		funnel:       funnel,
		attempts:     attempts,
		auth:         auth,
		log:          log.Named("quiz"),
		now:          time.Now,
	}
}

// SetBroadcaster sets the broadcaster for live ops events
func (s *QuizService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Start opens a session and returns its id with a session token
func (s *QuizService) Start(ctx context.Context, req model.StartRequest) (*model.StartResponse, error) {
	if _, err := s.catalogs.Get(req.QuizID); err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.QuizSession{
		ID:           "qs_" + uuid.New().String(),
		QuizID:       req.QuizID,
		Source:       req.Source,
		UTM:          req.UTM,
		Device:       req.Device,
		Status:       model.SessionInProgress,
		Responses:    map[string]model.Response{},
		StartedAt:    now,
		LastActivity: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.auth.IssueSessionToken(session.ID, session.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.cacheProgress(ctx, session)
	s.bump(ctx, session.QuizID, cache.FieldStarts, 1)

	s.log.Info("session started",
		zap.String("sessionId", session.ID),
		zap.String("quizId", session.QuizID),
		zap.String("source", session.Source),
		zap.String("utmCampaign", session.UTM.Campaign))

	s.broadcast(session.QuizID, EventSessionStarted, map[string]interface{}{
		"sessionId": session.ID,
		"source":    session.Source,
		"utm":       session.UTM,
	})

	return &model.StartResponse{SessionID: session.ID, Token: token}, nil
}

// RecordAnswer persists one mirrored answer. Replays of the same client attempt are ignored.
func (s *QuizService) RecordAnswer(ctx context.Context, req model.AnswerRequest) error {
	session, err := s.openSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if req.ClientAttemptID != "" {
		fresh, err := s.claimAttempt(ctx, req.SessionID, req.ClientAttemptID)
		if err != nil {
			return err
		}
		if !fresh {
			s.log.Debug("duplicate answer ignored",
				zap.String("sessionId", req.SessionID),
				zap.String("clientAttemptId", req.ClientAttemptID))
			return nil
		}
	}

	now := s.now()
	answer := &model.Answer{
		SessionID:       session.ID,
		QuizID:          session.QuizID,
		QuestionID:      req.QuestionID,
		QuestionType:    req.QuestionType,
		Response:        req.Value,
		ResponseTimeMs:  req.ResponseTimeMs,
		ClientAttemptID: req.ClientAttemptID,
		Metadata:        req.Metadata,
		AnsweredAt:      now,
	}
	if err := s.answerRepo.Create(ctx, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	if err := s.funnel.IncrAnswer(ctx, session.QuizID, req.QuestionID); err != nil {
		s.log.Warn("failed to count answer", zap.String("quizId", session.QuizID), zap.Error(err))
	}

	brand := ""
	if cat, err := s.catalogs.Get(session.QuizID); err == nil {
		brand = selectedBrand(cat, req.QuestionID, req.Value)
	}
	if brand != "" {
		if err := s.brands.Incr(ctx, session.QuizID, brand); err != nil {
			s.log.Warn("failed to rank brand", zap.String("brand", brand), zap.Error(err))
		}
	}

	if session.Responses == nil {
		session.Responses = map[string]model.Response{}
	}
	if req.Value.Empty() {
		delete(session.Responses, req.QuestionID)
	} else {
		session.Responses[req.QuestionID] = req.Value
	}
	session.LastActivity = now
	s.cacheProgress(ctx, session)

	s.broadcast(session.QuizID, EventQuestionAnswered, map[string]interface{}{
		"sessionId":  session.ID,
		"questionId": req.QuestionID,
		"value":      req.Value,
		"brand":      brand,
	})
	return nil
}

// PatchProgress mirrors navigation state into the session record
func (s *QuizService) PatchProgress(ctx context.Context, patch model.ProgressPatch) error {
	session, err := s.openSession(ctx, patch.SessionID)
	if err != nil {
		return err
	}
	if patch.Status == model.SessionCompleted {
		return fmt.Errorf("progress cannot complete a session, use complete")
	}

	now := s.now()
	if err := s.sessionRepo.UpdateProgress(ctx, patch, now); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	session.CurrentStep = patch.CurrentStep
	if patch.Responses != nil {
		session.Responses = patch.Responses
	}
	if patch.Status != "" {
		session.Status = patch.Status
	}
	session.LastActivity = now
	s.cacheProgress(ctx, session)
	return nil
}

// RecordInteractions stores a telemetry batch and counts its hesitations
func (s *QuizService) RecordInteractions(ctx context.Context, batch model.InteractionBatch) error {
	session, err := s.load(ctx, batch.SessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return repository.ErrSessionNotFound
	}
	if len(batch.Interactions) == 0 {
		return nil
	}

	now := s.now()
	batch.ReceivedAt = now
	if err := s.interactions.InsertBatch(ctx, &batch); err != nil {
		return fmt.Errorf("failed to store interactions: %w", err)
	}
	if err := s.sessionRepo.AddInteractions(ctx, session.ID, len(batch.Interactions), now); err != nil {
		s.log.Warn("failed to count interactions", zap.String("sessionId", session.ID), zap.Error(err))
	}

	var hesitations []string
	for _, in := range batch.Interactions {
		if in.Type == model.InteractionHesitation {
			hesitations = append(hesitations, in.QuestionID)
		}
	}
	if len(hesitations) > 0 {
		s.bump(ctx, session.QuizID, cache.FieldHesitations, int64(len(hesitations)))
		s.broadcast(session.QuizID, EventHesitation, map[string]interface{}{
			"sessionId": session.ID,
			"questions": hesitations,
		})
	}
	return nil
}

// Complete ends a session and returns its recommendation. Completing twice returns the first result.
func (s *QuizService) Complete(ctx context.Context, sessionID string) (*model.CompletionResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, repository.ErrSessionNotFound
	}
	if session.Status == model.SessionCompleted && session.Result != nil {
		return session.Result, nil
	}

	cat, err := s.catalogs.Get(session.QuizID)
	if err != nil {
		return nil, err
	}
	result := Recommend(cat, session.ID, session.Responses)

	now := s.now()
	if err := s.sessionRepo.Complete(ctx, session.ID, result, now); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	session.Status = model.SessionCompleted
	session.Result = result
	session.CompletedAt = &now
	session.LastActivity = now
	s.cacheProgress(ctx, session)
	s.bump(ctx, session.QuizID, cache.FieldCompletions, 1)

	s.log.Info("session completed",
		zap.String("sessionId", session.ID),
		zap.String("quizId", session.QuizID),
		zap.String("serviceLine", result.ServiceLine),
		zap.Int("score", result.Score))

	s.broadcast(session.QuizID, EventSessionCompleted, map[string]interface{}{
		"sessionId":   session.ID,
		"score":       result.Score,
		"serviceLine": result.ServiceLine,
		"brand":       result.Brand,
	})
	return result, nil
}

// Get returns the live view of a session, preferring the progress cache
func (s *QuizService) Get(ctx context.Context, sessionID string) (*model.QuizSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

// Catalog returns the question catalog of a quiz
func (s *QuizService) Catalog(quizID string) (*catalog.Catalog, error) {
	return s.catalogs.Get(quizID)
}

func (s *QuizService) load(ctx context.Context, id string) (*model.QuizSession, error) {
	session, err := s.progress.Get(ctx, id)
	if err != nil {
		s.log.Warn("progress cache read failed", zap.String("sessionId", id), zap.Error(err))
	}
	if session != nil {
		return session, nil
	}
	session, err = s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *QuizService) openSession(ctx context.Context, id string) (*model.QuizSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, repository.ErrSessionNotFound
	}
	if session.Status == model.SessionCompleted {
		return nil, ErrSessionClosed
	}
	return session, nil
}

// claimAttempt falls back to Mongo when Redis is unavailable
func (s *QuizService) claimAttempt(ctx context.Context, sessionID, attemptID string) (bool, error) {
	fresh, err := s.attempts.Claim(ctx, sessionID, attemptID)
	if err == nil {
		return fresh, nil
	}
	s.log.Warn("attempt cache unavailable", zap.String("sessionId", sessionID), zap.Error(err))

	exists, err := s.answerRepo.ExistsAttempt(ctx, sessionID, attemptID)
	if err != nil {
		return false, fmt.Errorf("idempotency check failed: %w", err)
	}
	return !exists, nil
}

func (s *QuizService) cacheProgress(ctx context.Context, session *model.QuizSession) {
	if err := s.progress.Set(ctx, session); err != nil {
		s.log.Warn("failed to cache progress", zap.String("sessionId", session.ID), zap.Error(err))
	}
}

func (s *QuizService) bump(ctx context.Context, quizID, field string, by int64) {
	if err := s.funnel.Incr(ctx, quizID, field, by); err != nil {
		s.log.Warn("failed to bump funnel", zap.String("quizId", quizID), zap.String("field", field), zap.Error(err))
	}
}

func (s *QuizService) broadcast(quizID, msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(quizID, msgType, payload)
	}
}
