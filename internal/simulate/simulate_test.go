package simulate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quizflow/internal/catalog"
	"quizflow/internal/model"
	"quizflow/internal/wizard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingGateway struct {
	mu        sync.Mutex
	answers   []string
	completed bool
	startErr  error
}

func (g *recordingGateway) StartSession(context.Context, model.StartRequest) (string, error) {
	if g.startErr != nil {
		return "", g.startErr
	}
	return "qs_sim", nil
}

func (g *recordingGateway) RecordAnswer(_ context.Context, req model.AnswerRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, req.QuestionID)
	return nil
}

func (g *recordingGateway) PatchProgress(context.Context, model.ProgressPatch) error { return nil }

func (g *recordingGateway) FlushInteractions(context.Context, string, []model.MicroInteraction) error {
	return nil
}

func (g *recordingGateway) CompleteSession(_ context.Context, sid string) (*model.CompletionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = true
	return &model.CompletionResult{SessionID: sid, Score: 80}, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = value
	return nil
}

func quiz(t *testing.T) *catalog.Catalog {
	t.Helper()
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)
	c, err := reg.Get("quiz-v2")
	require.NoError(t, err)
	return c
}

var professional = Script{
	"user-type":       {"professional"},
	"brand-selection": {"fowler"},
	"org-type":        {"railway"},
	"fleet-size":      {"2"},
	"services-needed": {"boiler-inspection", "running-repairs"},
	"timeline":        {"this-season"},
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]string{"user-type=personal", "interests=parts| advice ", "experience-level="})
	require.NoError(t, err)
	assert.Equal(t, []string{"personal"}, s["user-type"])
	assert.Equal(t, []string{"parts", "advice"}, s["interests"])
	assert.Empty(t, s["experience-level"])
	assert.Equal(t, []string{"interests", "user-type"}, s.Questions())

	_, err = ParseScript([]string{"no-equals-sign"})
	assert.Error(t, err)
	_, err = ParseScript([]string{"=value"})
	assert.Error(t, err)
}

func TestRunCompletesThroughGateway(t *testing.T) {
	gw := &recordingGateway{}
	res, err := Run(context.Background(), quiz(t), wizard.Options{Gateway: gw}, professional, Config{SessionWait: time.Second})
	require.NoError(t, err)

	assert.Equal(t, []string{"user-type", "brand-selection", "org-type", "fleet-size", "services-needed", "timeline"}, res.Questions)
	assert.Equal(t, "/quiz/results?session=qs_sim", res.Outcome.RedirectURL)
	assert.False(t, res.Outcome.Degraded)
	require.NotNil(t, res.Outcome.Result)
	assert.Equal(t, 80, res.Outcome.Result.Score)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.True(t, gw.completed)
	assert.Len(t, gw.answers, 7)
}

func TestRunSkipsUnscriptedOptionalQuestions(t *testing.T) {
	script := Script{
		"user-type":       {"personal"},
		"brand-selection": {"stuart-turner"},
		"engine-scale":    {"model"},
		"interests":       {"parts"},
		"timeline":        {"researching"},
	}
	store := &memStore{}
	res, err := Run(context.Background(), quiz(t), wizard.Options{
		Gateway: &recordingGateway{startErr: errors.New("offline")},
		Store:   store,
	}, script, Config{SessionWait: 50 * time.Millisecond})
	require.NoError(t, err)

	assert.Contains(t, res.Questions, "experience-level")
	assert.True(t, res.Outcome.Degraded)
	assert.Equal(t, "/quiz/results?mode=local", res.Outcome.RedirectURL)
	assert.Contains(t, string(store.data[wizard.KeyResponses]), "stuart-turner")
}

func TestRunMissingRequiredAnswer(t *testing.T) {
	_, err := Run(context.Background(), quiz(t), wizard.Options{Gateway: &recordingGateway{}},
		Script{"user-type": {"professional"}}, Config{SessionWait: time.Second})
	assert.ErrorIs(t, err, ErrMissingAnswer)
}
