package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/catalog"
	"quizflow/internal/model"
)

func quizCatalog(t *testing.T, id string) *catalog.Catalog {
	t.Helper()
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)
	c, err := reg.Get(id)
	require.NoError(t, err)
	return c
}

func TestRecommend(t *testing.T) {
	c := quizCatalog(t, "quiz-v2")

	tests := []struct {
		name      string
		responses map[string]model.Response
		line      string
		score     int
		brand     string
	}{
		{
			name: "urgent professional restoration",
			responses: map[string]model.Response{
				"user-type":       model.Scalar("professional"),
				"brand-selection": model.Scalar("fowler"),
				"org-type":        model.Scalar("museum"),
				"fleet-size":      model.Scalar("3"),
				"services-needed": {Values: []string{"boiler-inspection", "overhaul"}},
				"timeline":        model.Scalar("asap"),
			},
			line:  LineRestoration,
			score: 100,
			brand: "fowler",
		},
		{
			name: "tie breaks in service line order",
			responses: map[string]model.Response{
				"user-type":    model.Scalar("personal"),
				"engine-scale": model.Scalar("model"),
				"interests":    {Values: []string{"advice"}},
				"timeline":     model.Scalar("researching"),
			},
			line:  LineConsultancy,
			score: 45,
		},
		{
			name: "other brand is not named",
			responses: map[string]model.Response{
				"user-type":       model.Scalar("personal"),
				"brand-selection": model.Scalar("other"),
			},
			line:  LineConsultancy,
			score: 20,
		},
		{
			name: "answers from an abandoned path are ignored",
			responses: map[string]model.Response{
				"user-type":       model.Scalar("personal"),
				"org-type":        model.Scalar("museum"),
				"services-needed": {Values: []string{"overhaul", "boiler-inspection"}},
				"engine-scale":    model.Scalar("model"),
				"interests":       {Values: []string{"advice"}},
			},
			line:  LineConsultancy,
			score: 35,
		},
		{
			name: "path questions without the branch answer are ignored",
			responses: map[string]model.Response{
				"brand-selection": model.Scalar("fowler"),
				"org-type":        model.Scalar("museum"),
			},
			line:  LineConsultancy,
			score: 0,
		},
		{
			name:      "nothing answered",
			responses: map[string]model.Response{},
			line:      LineConsultancy,
			score:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(c, "qs_1", tt.responses)
			assert.Equal(t, "qs_1", got.SessionID)
			assert.Equal(t, tt.line, got.ServiceLine)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.brand, got.Brand)
			assert.NotEmpty(t, got.Recommendation)
		})
	}
}

func TestRecommendRequirementsWizard(t *testing.T) {
	c := quizCatalog(t, "requirements-wizard")
	got := Recommend(c, "qs_2", map[string]model.Response{
		"project-type":    model.Scalar("certification"),
		"certificate-due": model.Scalar("expired"),
	})
	assert.Equal(t, LineCertification, got.ServiceLine)
	assert.Equal(t, 20+10+20, got.Score)
}

func TestSelectedBrandIgnoresStaticQuestions(t *testing.T) {
	c := quizCatalog(t, "quiz-v2")
	assert.Equal(t, "hunslet", selectedBrand(c, "brand-selection", model.Scalar("hunslet")))
	assert.Empty(t, selectedBrand(c, "org-type", model.Scalar("hunslet")))
	assert.Empty(t, selectedBrand(c, "brand-selection", model.Scalar("unknown-works")))
}
