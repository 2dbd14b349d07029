package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/catalog"
	"quizflow/internal/config"
	"quizflow/internal/model"
	"quizflow/internal/repository"
)

type quizHarness struct {
	svc          *QuizService
	auth         *AuthService
	sessions     *fakeSessionRepo
	answers      *fakeAnswerRepo
	interactions *fakeInteractionRepo
	progress     *fakeProgressCache
	brands       *fakeBrandCache
	funnel       *fakeFunnelCache
	attempts     *fakeAttemptCache
	bc           *fakeBroadcaster
}

func newQuizHarness(t *testing.T) *quizHarness {
	t.Helper()
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)

	h := &quizHarness{
		auth:         NewAuthService(config.AuthConfig{JWTSecret: "test-secret", OpsUser: "ops", OpsPass: "pw"}),
		sessions:     newFakeSessionRepo(),
		answers:      &fakeAnswerRepo{},
		interactions: &fakeInteractionRepo{},
		progress:     newFakeProgressCache(),
		brands:       newFakeBrandCache(),
		funnel:       newFakeFunnelCache(),
		attempts:     newFakeAttemptCache(),
		bc:           &fakeBroadcaster{},
	}
	h.svc = NewQuizService(reg, h.sessions, h.answers, h.interactions, h.progress,
		h.brands, h.funnel, h.attempts, h.auth, nil)
	h.svc.SetBroadcaster(h.bc)
	return h
}

func (h *quizHarness) start(t *testing.T) *model.StartResponse {
	t.Helper()
	resp, err := h.svc.Start(context.Background(), model.StartRequest{
		QuizID: "quiz-v2",
		Source: "web",
		UTM:    model.UTMParams{Source: "show", Campaign: "spring-rally"},
	})
	require.NoError(t, err)
	return resp
}

func (h *quizHarness) answer(t *testing.T, sid, qid, attempt string, v model.Response) {
	t.Helper()
	require.NoError(t, h.svc.RecordAnswer(context.Background(), model.AnswerRequest{
		SessionID:       sid,
		QuestionID:      qid,
		Value:           v,
		ClientAttemptID: attempt,
	}))
}

func TestStartCreatesSession(t *testing.T) {
	h := newQuizHarness(t)
	resp := h.start(t)

	assert.True(t, strings.HasPrefix(resp.SessionID, "qs_"))
	claims, err := h.auth.ValidateSessionToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, claims.SessionID)
	assert.Equal(t, "quiz-v2", claims.QuizID)

	stored, err := h.sessions.GetByID(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.SessionInProgress, stored.Status)
	assert.Equal(t, "spring-rally", stored.UTM.Campaign)

	assert.Equal(t, int64(1), h.funnel.get("quiz-v2").Starts)
	assert.Equal(t, []string{EventSessionStarted}, h.bc.types())
}

func TestStartUnknownQuiz(t *testing.T) {
	h := newQuizHarness(t)
	_, err := h.svc.Start(context.Background(), model.StartRequest{QuizID: "quiz-v9"})
	assert.ErrorIs(t, err, catalog.ErrUnknownQuiz)
}

func TestRecordAnswerIsIdempotent(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID

	h.answer(t, sid, "user-type", "01J0000000000000000000000A", model.Scalar("professional"))
	h.answer(t, sid, "user-type", "01J0000000000000000000000A", model.Scalar("professional"))

	answers, err := h.answers.GetBySessionID(context.Background(), sid)
	require.NoError(t, err)
	assert.Len(t, answers, 1)
	assert.Equal(t, int64(1), h.funnel.get("quiz-v2").QuestionAnswers["user-type"])

	live, err := h.svc.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "professional", live.Responses["user-type"].Value)
}

func TestRecordAnswerFallsBackToMongoWhenRedisDown(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID
	h.attempts.err = errCacheDown

	h.answer(t, sid, "user-type", "attempt-1", model.Scalar("personal"))
	h.answer(t, sid, "user-type", "attempt-1", model.Scalar("personal"))
	h.answer(t, sid, "user-type", "attempt-2", model.Scalar("professional"))

	answers, err := h.answers.GetBySessionID(context.Background(), sid)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
}

func TestRecordAnswerRanksBrands(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID

	h.answer(t, sid, "user-type", "a1", model.Scalar("professional"))
	h.answer(t, sid, "brand-selection", "a2", model.Scalar("fowler"))
	h.answer(t, sid, "org-type", "a3", model.Scalar("museum"))

	top, err := h.brands.Top(context.Background(), "quiz-v2", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "fowler", top[0].Brand)
	assert.Equal(t, 1, top[0].Count)
}

func TestRecordAnswerUnknownSession(t *testing.T) {
	h := newQuizHarness(t)
	err := h.svc.RecordAnswer(context.Background(), model.AnswerRequest{SessionID: "qs_missing", QuestionID: "user-type"})
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestPatchProgress(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID

	err := h.svc.PatchProgress(context.Background(), model.ProgressPatch{
		SessionID:   sid,
		CurrentStep: 2,
		Responses:   map[string]model.Response{"user-type": model.Scalar("personal")},
		Status:      model.SessionInProgress,
	})
	require.NoError(t, err)

	stored, _ := h.sessions.GetByID(context.Background(), sid)
	assert.Equal(t, 2, stored.CurrentStep)
	assert.Equal(t, "personal", stored.Responses["user-type"].Value)

	err = h.svc.PatchProgress(context.Background(), model.ProgressPatch{SessionID: sid, Status: model.SessionCompleted})
	assert.Error(t, err)
}

func TestRecordInteractionsCountsHesitations(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID
	now := time.Now()

	err := h.svc.RecordInteractions(context.Background(), model.InteractionBatch{
		SessionID: sid,
		Interactions: []model.MicroInteraction{
			{SessionID: sid, QuestionID: "user-type", Type: model.InteractionHover, Timestamp: now},
			{SessionID: sid, QuestionID: "user-type", Type: model.InteractionHesitation, Timestamp: now, DurationMs: 30000},
			{SessionID: sid, QuestionID: "user-type", Type: model.InteractionSelection, Timestamp: now},
		},
	})
	require.NoError(t, err)

	assert.Len(t, h.interactions.batches, 1)
	assert.False(t, h.interactions.batches[0].ReceivedAt.IsZero())
	assert.Equal(t, int64(1), h.funnel.get("quiz-v2").Hesitations)
	stored, _ := h.sessions.GetByID(context.Background(), sid)
	assert.Equal(t, 3, stored.InteractionsN)
	assert.Contains(t, h.bc.types(), EventHesitation)
}

func TestRecordInteractionsEmptyBatch(t *testing.T) {
	h := newQuizHarness(t)
	sid := h.start(t).SessionID
	require.NoError(t, h.svc.RecordInteractions(context.Background(), model.InteractionBatch{SessionID: sid}))
	assert.Empty(t, h.interactions.batches)
}

func TestCompleteComputesRecommendationOnce(t *testing.T) {
	h := newQuizHarness(t)
	ctx := context.Background()
	sid := h.start(t).SessionID

	h.answer(t, sid, "user-type", "a1", model.Scalar("professional"))
	h.answer(t, sid, "brand-selection", "a2", model.Scalar("fowler"))
	h.answer(t, sid, "org-type", "a3", model.Scalar("museum"))
	h.answer(t, sid, "fleet-size", "a4", model.Scalar("3"))
	h.answer(t, sid, "services-needed", "a5", model.Response{Values: []string{"boiler-inspection", "overhaul"}})
	h.answer(t, sid, "timeline", "a6", model.Scalar("asap"))

	res, err := h.svc.Complete(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, sid, res.SessionID)
	assert.Equal(t, LineRestoration, res.ServiceLine)
	assert.Equal(t, "fowler", res.Brand)

	again, err := h.svc.Complete(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Equal(t, int64(1), h.funnel.get("quiz-v2").Completions)

	stored, _ := h.sessions.GetByID(ctx, sid)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	err = h.svc.RecordAnswer(ctx, model.AnswerRequest{SessionID: sid, QuestionID: "timeline", Value: model.Scalar("researching")})
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.Equal(t, EventSessionCompleted, h.bc.types()[len(h.bc.types())-1])
}

func TestCompleteReadsMongoWhenCacheDown(t *testing.T) {
	h := newQuizHarness(t)
	ctx := context.Background()
	sid := h.start(t).SessionID
	require.NoError(t, h.svc.PatchProgress(ctx, model.ProgressPatch{
		SessionID: sid,
		Responses: map[string]model.Response{"user-type": model.Scalar("personal")},
	}))

	h.progress.err = errCacheDown
	res, err := h.svc.Complete(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, LineConsultancy, res.ServiceLine)
}

func TestGetMissingSession(t *testing.T) {
	h := newQuizHarness(t)
	_, err := h.svc.Get(context.Background(), "qs_nope")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
