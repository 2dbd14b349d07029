package model

// Brand is an entry of the brand registry used to synthesize the brand-selection question
type Brand struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Logo        string         `json:"logo,omitempty" yaml:"logo,omitempty"`
	Color       string         `json:"color,omitempty" yaml:"color,omitempty"`
	Highlights  []string       `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Relevance   map[string]int `json:"relevance" yaml:"relevance"` // path key -> weight, 0 or missing hides the brand
}
