package model

import "slices"

// QuestionType defines how a question is answered and rendered
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single-choice"
	QuestionTypeMultiChoice  QuestionType = "multi-choice"
	QuestionTypeScale        QuestionType = "scale"
	QuestionTypeImageChoice  QuestionType = "image-choice"
	QuestionTypeVisualCards  QuestionType = "visual-cards"
	QuestionTypeBrandGrid    QuestionType = "brand-grid"
)

// Valid reports whether t is one of the known question types
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeScale,
		QuestionTypeImageChoice, QuestionTypeVisualCards, QuestionTypeBrandGrid:
		return true
	}
	return false
}

// MultiValued reports whether answers toggle membership in a set
func (t QuestionType) MultiValued() bool {
	return t == QuestionTypeMultiChoice
}

// AutoAdvances reports whether a single answer is enough to move on without a Continue click
func (t QuestionType) AutoAdvances() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeImageChoice, QuestionTypeVisualCards:
		return true
	}
	return false
}

// Path discriminator fields a question can set on the session when answered
const (
	SetsUserType      = "userType"
	SetsSelectedBrand = "selectedBrand"
	SetsProjectType   = "projectType"
)

// Option is one selectable answer of a question
type Option struct {
	ID          string   `json:"id" yaml:"id" bson:"id"`
	Value       string   `json:"value" yaml:"value" bson:"value"` // semantic answer payload
	Label       string   `json:"label" yaml:"label" bson:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" bson:"description,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty" bson:"icon,omitempty"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty" bson:"color,omitempty"`
	Highlights  []string `json:"highlights,omitempty" yaml:"highlights,omitempty" bson:"highlights,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" bson:"tags,omitempty"` // recommendation hints
}

// Question is an immutable question definition, either from a catalog or synthesized by branching
type Question struct {
	ID            string       `json:"id" yaml:"id"`
	Type          QuestionType `json:"type" yaml:"type"`
	Prompt        string       `json:"prompt" yaml:"prompt"`
	Subtitle      string       `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Options       []Option     `json:"options" yaml:"options"`
	Required      bool         `json:"required" yaml:"required"`
	Category      string       `json:"category,omitempty" yaml:"category,omitempty"`
	ManualConfirm bool         `json:"manualConfirm,omitempty" yaml:"manual_confirm,omitempty"` // needs an explicit Continue
	Sets          string       `json:"sets,omitempty" yaml:"sets,omitempty"`                    // session field set by this answer
}

// Clone returns a deep copy so callers can never alias catalog data
func (q Question) Clone() Question {
	out := q
	out.Options = make([]Option, len(q.Options))
	for i, o := range q.Options {
		o.Highlights = slices.Clone(o.Highlights)
		o.Tags = slices.Clone(o.Tags)
		out.Options[i] = o
	}
	return out
}

// Option returns the option whose value matches v
func (q Question) Option(v string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == v {
			return o, true
		}
	}
	return Option{}, false
}

// CloneQuestions deep-copies a question slice
func CloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
