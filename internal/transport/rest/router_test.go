package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/catalog"
	"quizflow/internal/config"
	"quizflow/internal/model"
	"quizflow/internal/repository"
	"quizflow/internal/service"
	"quizflow/internal/transport/ws"
)

type fakeQuiz struct {
	mu        sync.Mutex
	catalogs  *catalog.Registry
	auth      *service.AuthService
	started   []model.StartRequest
	answers   []model.AnswerRequest
	patches   []model.ProgressPatch
	batches   []model.InteractionBatch
	completed []string
	err       error
}

func (f *fakeQuiz) Start(_ context.Context, req model.StartRequest) (*model.StartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.catalogs.Get(req.QuizID); err != nil {
		return nil, err
	}
	f.started = append(f.started, req)
	token, err := f.auth.IssueSessionToken("qs_1", req.QuizID)
	if err != nil {
		return nil, err
	}
	return &model.StartResponse{SessionID: "qs_1", Token: token}, nil
}

func (f *fakeQuiz) RecordAnswer(_ context.Context, req model.AnswerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	return f.err
}

func (f *fakeQuiz) PatchProgress(_ context.Context, p model.ProgressPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, p)
	return f.err
}

func (f *fakeQuiz) RecordInteractions(_ context.Context, b model.InteractionBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return f.err
}

func (f *fakeQuiz) Complete(_ context.Context, sid string) (*model.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.completed = append(f.completed, sid)
	return &model.CompletionResult{SessionID: sid, Score: 70, ServiceLine: "maintenance"}, nil
}

func (f *fakeQuiz) Get(_ context.Context, sid string) (*model.QuizSession, error) {
	if sid != "qs_1" {
		return nil, repository.ErrSessionNotFound
	}
	return &model.QuizSession{ID: sid, QuizID: "quiz-v2", Status: model.SessionInProgress}, nil
}

func (f *fakeQuiz) Catalog(quizID string) (*catalog.Catalog, error) {
	return f.catalogs.Get(quizID)
}

type fakeStats struct{}

func (fakeStats) Funnel(_ context.Context, quizID string) (*model.Funnel, error) {
	return &model.Funnel{QuizID: quizID, Starts: 4, Completions: 1, CompletionRate: 0.25}, nil
}

type apiHarness struct {
	quiz    *fakeQuiz
	auth    *service.AuthService
	handler http.Handler
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)
	auth := service.NewAuthService(config.AuthConfig{JWTSecret: "test", OpsUser: "ops", OpsPass: "pw"})
	hub := ws.NewHub(nil)
	t.Cleanup(hub.Close)

	quiz := &fakeQuiz{catalogs: reg, auth: auth}
	return &apiHarness{
		quiz: quiz,
		auth: auth,
		handler: NewRouter(&Container{
			Auth:           auth,
			Quiz:           quiz,
			Stats:          fakeStats{},
			WSHub:          hub,
			AllowedOrigins: []string{"https://quiz.example"},
		}),
	}
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) sessionToken(t *testing.T) string {
	t.Helper()
	token, err := h.auth.IssueSessionToken("qs_1", "quiz-v2")
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartDefaultsQuizPerFlow(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, "POST", "/api/requirements/start", "", model.StartRequest{Source: "web"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp model.StartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "qs_1", resp.SessionID)
	assert.NotEmpty(t, resp.Token)

	rec = h.do(t, "POST", "/api/quiz/start", "", model.StartRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, h.quiz.started, 2)
	assert.Equal(t, "requirements-wizard", h.quiz.started[0].QuizID)
	assert.Equal(t, "quiz-v2", h.quiz.started[1].QuizID)

	rec = h.do(t, "POST", "/api/quiz/start", "", model.StartRequest{QuizID: "quiz-v9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, "POST", "/api/other/start", "", model.StartRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRoutesRequireToken(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(t, "POST", "/api/quiz/answer", "", model.AnswerRequest{QuestionID: "user-type"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ops, err := h.auth.Login("ops", "pw")
	require.NoError(t, err)
	rec = h.do(t, "POST", "/api/quiz/answer", ops.Token, model.AnswerRequest{QuestionID: "user-type"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.quiz.answers)
}

func TestAnswerBindsSessionFromToken(t *testing.T) {
	h := newAPIHarness(t)
	token := h.sessionToken(t)

	rec := h.do(t, "POST", "/api/quiz/answer", token, model.AnswerRequest{
		QuestionID: "user-type",
		Value:      model.Scalar("professional"),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, h.quiz.answers, 1)
	assert.Equal(t, "qs_1", h.quiz.answers[0].SessionID)

	rec = h.do(t, "POST", "/api/quiz/answer", token, model.AnswerRequest{SessionID: "qs_2", QuestionID: "user-type"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, "POST", "/api/quiz/answer", token, model.AnswerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressInteractionsComplete(t *testing.T) {
	h := newAPIHarness(t)
	token := h.sessionToken(t)

	rec := h.do(t, "PATCH", "/api/quiz/progress", token, model.ProgressPatch{SessionID: "qs_1", CurrentStep: 3})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, "POST", "/api/quiz/interactions", token, model.InteractionBatch{
		Interactions: []model.MicroInteraction{{Type: model.InteractionHover}, {Type: model.InteractionHesitation}},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"received":2}`, rec.Body.String())

	rec = h.do(t, "POST", "/api/quiz/complete", token, model.CompleteRequest{SessionID: "qs_1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var res model.CompletionResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 70, res.Score)

	assert.Equal(t, 3, h.quiz.patches[0].CurrentStep)
	assert.Equal(t, "qs_1", h.quiz.batches[0].SessionID)
	assert.Equal(t, []string{"qs_1"}, h.quiz.completed)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{repository.ErrSessionNotFound, http.StatusNotFound},
		{service.ErrSessionClosed, http.StatusConflict},
		{errors.New("mongo: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newAPIHarness(t)
			h.quiz.err = tt.err
			rec := h.do(t, "POST", "/api/quiz/complete", h.sessionToken(t), model.CompleteRequest{})
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
			}
		})
	}
}

func TestCatalogIsPublic(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(t, "GET", "/api/quiz/catalog/quiz-v2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view catalog.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "quiz-v2", view.ID)
	assert.Contains(t, view.Paths, "professional")

	rec = h.do(t, "GET", "/api/quiz/catalog/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsRoutes(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, "POST", "/v1/auth/login", "", model.LoginRequest{Username: "ops", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, "POST", "/v1/auth/login", "", model.LoginRequest{Username: "ops", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))

	rec = h.do(t, "GET", "/v1/ops/funnel/quiz-v2", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(t, "GET", "/v1/ops/funnel/quiz-v2", h.sessionToken(t), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, "GET", "/v1/ops/funnel/quiz-v2", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completionRate":0.25`)

	rec = h.do(t, "GET", "/v1/ops/sessions/qs_1", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, "GET", "/v1/ops/sessions/qs_404", login.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest("OPTIONS", "/api/quiz/answer", nil)
	req.Header.Set("Origin", "https://quiz.example")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://quiz.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
