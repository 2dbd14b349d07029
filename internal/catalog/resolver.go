package catalog

import (
	"sort"

	"quizflow/internal/model"
)

// Expand rewrites the effective sequence after questionID was answered with value.
//
// The questions up to and including the answered one are kept at their indices;
// everything after it becomes brand grid ++ path questions ++ tail. A question
// that is not a branch point, a value without a path, or an answered id that is
// not in seq all leave the sequence untouched and report false.
func (c *Catalog) Expand(seq []model.Question, questionID, value string) ([]model.Question, bool) {
	b, ok := c.branches[questionID]
	if !ok {
		return seq, false
	}
	p, ok := b.Paths[value]
	if !ok {
		return seq, false
	}
	at := indexOf(seq, questionID)
	if at < 0 {
		return seq, false
	}

	next := make([]model.Question, 0, at+1+len(p.Questions)+len(c.tail)+1)
	next = append(next, seq[:at+1]...)
	if p.BrandGrid != nil {
		if q, ok := c.BrandQuestion(p.Key, *p.BrandGrid); ok {
			next = append(next, q)
		}
	}
	next = append(next, model.CloneQuestions(p.Questions)...)
	next = append(next, model.CloneQuestions(c.tail)...)

	if sameQuestions(seq, next) {
		return seq, false
	}
	return next, true
}

// RankBrands returns the brands relevant to pathKey, most relevant first.
// Equal relevance keeps registry order.
func (c *Catalog) RankBrands(pathKey string) []model.Brand {
	ranked := make([]model.Brand, 0, len(c.brands))
	for _, br := range c.brands {
		if br.Relevance[pathKey] > 0 {
			ranked = append(ranked, br)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance[pathKey] > ranked[j].Relevance[pathKey]
	})
	return ranked
}

// BrandQuestion synthesizes the brand-selection question for a path.
// It reports false when no brand is relevant to the path.
func (c *Catalog) BrandQuestion(pathKey string, grid BrandGrid) (model.Question, bool) {
	brands := c.RankBrands(pathKey)
	if len(brands) == 0 {
		return model.Question{}, false
	}
	q := model.Question{
		ID:            grid.ID,
		Type:          model.QuestionTypeBrandGrid,
		Prompt:        grid.Prompt,
		Subtitle:      grid.Subtitle,
		Required:      grid.Required,
		Category:      "brand",
		ManualConfirm: true,
		Sets:          model.SetsSelectedBrand,
		Options:       make([]model.Option, 0, len(brands)),
	}
	for _, br := range brands {
		q.Options = append(q.Options, model.Option{
			ID:          br.ID,
			Value:       br.ID,
			Label:       br.Name,
			Description: br.Description,
			Icon:        br.Logo,
			Color:       br.Color,
			Highlights:  append([]string(nil), br.Highlights...),
		})
	}
	return q, true
}

func indexOf(seq []model.Question, id string) int {
	for i, q := range seq {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// sameQuestions compares ids and option order, so two paths sharing ids but
// ranking brands differently are still told apart
func sameQuestions(a, b []model.Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || len(a[i].Options) != len(b[i].Options) {
			return false
		}
		for j := range a[i].Options {
			if a[i].Options[j].Value != b[i].Options[j].Value {
				return false
			}
		}
	}
	return true
}
