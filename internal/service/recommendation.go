package service

import (
	"quizflow/internal/catalog"
	"quizflow/internal/model"
)

// Service lines a quiz can recommend, in tie-break order
const (
	LineRestoration   = "restoration"
	LineMaintenance   = "maintenance"
	LineCertification = "certification"
	LineConsultancy   = "consultancy"
	LineParts         = "parts"
)

var serviceLines = []string{LineRestoration, LineMaintenance, LineCertification, LineConsultancy, LineParts}

var recommendations = map[string]string{
	LineRestoration:   "Book a restoration survey with the works team",
	LineMaintenance:   "Set up a planned maintenance schedule",
	LineCertification: "Arrange a boiler inspection ahead of your certificate date",
	LineConsultancy:   "Talk to an engineer about your plans",
	LineParts:         "Request a quote from the pattern shop",
}

const tagUrgent = "urgent"

// Recommend scores the responses of a finished session.
// Each selected option votes for the service lines in its tags. The score grows
// with answered questions, urgency and a named brand, capped at 100. Answers
// left behind on a path the session switched away from are not scored.
func Recommend(c *catalog.Catalog, sessionID string, responses map[string]model.Response) *model.CompletionResult {
	votes := map[string]int{}
	urgent := false
	brand := ""
	answered := 0

	brands := map[string]bool{}
	for _, b := range c.Brands() {
		brands[b.ID] = true
	}

	for _, qid := range resolvedPath(c, responses) {
		resp, ok := responses[qid]
		if !ok || resp.Empty() {
			continue
		}
		answered++

		q, static := c.Question(qid)
		for _, v := range resp.Selected() {
			if !static {
				if brands[v] && v != "other" {
					brand = v
				}
				continue
			}
			for _, o := range q.Options {
				if o.Value != v {
					continue
				}
				for _, tag := range o.Tags {
					if tag == tagUrgent {
						urgent = true
						continue
					}
					votes[tag]++
				}
			}
		}
	}

	line := LineConsultancy
	best := 0
	for _, l := range serviceLines {
		if votes[l] > best {
			line, best = l, votes[l]
		}
	}

	score := answered * 10
	if score > 60 {
		score = 60
	}
	score += best * 5
	if urgent {
		score += 20
	}
	if brand != "" {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	return &model.CompletionResult{
		SessionID:      sessionID,
		Score:          score,
		Recommendation: recommendations[line],
		ServiceLine:    line,
		Brand:          brand,
	}
}

// resolvedPath replays the branch answers over the initial sequence and
// returns the question ids of the session's effective sequence
func resolvedPath(c *catalog.Catalog, responses map[string]model.Response) []string {
	seq := c.InitialSequence()
	for i := 0; i < len(seq); i++ {
		qid := seq[i].ID
		if resp, ok := responses[qid]; ok && resp.Value != "" && c.IsBranchPoint(qid) {
			seq, _ = c.Expand(seq, qid, resp.Value)
		}
	}
	ids := make([]string, len(seq))
	for i, q := range seq {
		ids[i] = q.ID
	}
	return ids
}

// selectedBrand returns the brand registry id picked in resp, if any
func selectedBrand(c *catalog.Catalog, questionID string, resp model.Response) string {
	if _, static := c.Question(questionID); static {
		return ""
	}
	for _, v := range resp.Selected() {
		for _, b := range c.Brands() {
			if b.ID == v {
				return v
			}
		}
	}
	return ""
}
