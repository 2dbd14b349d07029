// Package catalog holds the immutable question catalogs and the branching
// resolver that grows a session's effective question sequence.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"quizflow/internal/model"
)

//go:embed catalogs/*.yaml
var builtin embed.FS

var (
	ErrUnknownQuiz = errors.New("unknown quiz identifier")
	ErrInvalid     = errors.New("invalid catalog")
)

// BrandGrid configures the synthetic brand-selection question of a path
type BrandGrid struct {
	ID       string `yaml:"id"`
	Prompt   string `yaml:"prompt"`
	Subtitle string `yaml:"subtitle"`
	Required bool   `yaml:"required"`
}

// Path is the slice of questions a branch value leads to
type Path struct {
	Key       string           `yaml:"-"`
	BrandGrid *BrandGrid       `yaml:"brand_grid,omitempty"`
	Questions []model.Question `yaml:"questions"`
}

// Branch maps the answers of one branching question to paths
type Branch struct {
	Question string           `yaml:"question"`
	Paths    map[string]*Path `yaml:"paths"`
}

type file struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	ResultsPath string           `yaml:"results_path"`
	Initial     model.Question   `yaml:"initial"`
	Branches    []Branch         `yaml:"branches"`
	Tail        []model.Question `yaml:"tail"`
	Brands      []model.Brand    `yaml:"brands"`
}

// Catalog is one quiz definition. It is read-only after Load.
type Catalog struct {
	id          string
	title       string
	resultsPath string
	initial     model.Question
	branches    map[string]Branch
	tail        []model.Question
	brands      []model.Brand
}

// ID returns the quiz identifier
func (c *Catalog) ID() string { return c.id }

// Title returns the human readable quiz title
func (c *Catalog) Title() string { return c.title }

// ResultsPath is the surface the flow redirects to after submission
func (c *Catalog) ResultsPath() string { return c.resultsPath }

// InitialQuestion returns the fixed discriminator question
func (c *Catalog) InitialQuestion() model.Question {
	return c.initial.Clone()
}

// InitialSequence is the effective sequence of a fresh session
func (c *Catalog) InitialSequence() []model.Question {
	seq := []model.Question{c.initial.Clone()}
	if _, ok := c.branches[c.initial.ID]; !ok {
		seq = append(seq, model.CloneQuestions(c.tail)...)
	}
	return seq
}

// IsBranchPoint reports whether answering questionID can rewrite the sequence
func (c *Catalog) IsBranchPoint(questionID string) bool {
	_, ok := c.branches[questionID]
	return ok
}

// PathKeys lists the known branch values for a branching question, sorted
func (c *Catalog) PathKeys(questionID string) []string {
	b, ok := c.branches[questionID]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(b.Paths))
	for k := range b.Paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Brands returns a copy of the brand registry in registry order
func (c *Catalog) Brands() []model.Brand {
	out := make([]model.Brand, len(c.brands))
	copy(out, c.brands)
	return out
}

// Question looks up any statically defined question by id
func (c *Catalog) Question(id string) (model.Question, bool) {
	if c.initial.ID == id {
		return c.initial.Clone(), true
	}
	for _, b := range c.branches {
		for _, p := range b.Paths {
			for _, q := range p.Questions {
				if q.ID == id {
					return q.Clone(), true
				}
			}
		}
	}
	for _, q := range c.tail {
		if q.ID == id {
			return q.Clone(), true
		}
	}
	return model.Question{}, false
}

// Parse decodes and validates one catalog document
func Parse(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		id:          f.ID,
		title:       f.Title,
		resultsPath: f.ResultsPath,
		initial:     f.Initial,
		branches:    make(map[string]Branch, len(f.Branches)),
		tail:        f.Tail,
		brands:      f.Brands,
	}
	if c.resultsPath == "" {
		c.resultsPath = "/quiz/results"
	}
	for _, b := range f.Branches {
		for k, p := range b.Paths {
			p.Key = k
		}
		c.branches[b.Question] = b
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if c.id == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if c.initial.ID == "" {
		return fmt.Errorf("%w %s: missing initial question", ErrInvalid, c.id)
	}

	// ids only need to be unique along any one effective sequence, so each path is
	// checked together with the static prefix and the tail
	static := map[string]bool{}
	if err := checkQuestion(c.id, c.initial, static); err != nil {
		return err
	}
	for _, q := range c.tail {
		if err := checkQuestion(c.id, q, static); err != nil {
			return err
		}
	}

	for qid, b := range c.branches {
		if _, ok := c.questionInAnyPath(qid); !ok && qid != c.initial.ID {
			return fmt.Errorf("%w %s: branch on unknown question %q", ErrInvalid, c.id, qid)
		}
		for key, p := range b.Paths {
			seen := make(map[string]bool, len(static))
			for id := range static {
				seen[id] = true
			}
			if p.BrandGrid != nil {
				if p.BrandGrid.ID == "" {
					return fmt.Errorf("%w %s: brand grid of path %q has no id", ErrInvalid, c.id, key)
				}
				if seen[p.BrandGrid.ID] {
					return fmt.Errorf("%w %s: duplicate question id %q", ErrInvalid, c.id, p.BrandGrid.ID)
				}
				seen[p.BrandGrid.ID] = true
			}
			for _, q := range p.Questions {
				if err := checkQuestion(c.id, q, seen); err != nil {
					return err
				}
			}
		}
	}

	brandIDs := map[string]bool{}
	for _, br := range c.brands {
		if br.ID == "" || brandIDs[br.ID] {
			return fmt.Errorf("%w %s: brand id %q missing or duplicated", ErrInvalid, c.id, br.ID)
		}
		brandIDs[br.ID] = true
	}
	return nil
}

func (c *Catalog) questionInAnyPath(id string) (model.Question, bool) {
	for _, b := range c.branches {
		for _, p := range b.Paths {
			for _, q := range p.Questions {
				if q.ID == id {
					return q, true
				}
			}
		}
	}
	return model.Question{}, false
}

func checkQuestion(catalogID string, q model.Question, seen map[string]bool) error {
	if q.ID == "" {
		return fmt.Errorf("%w %s: question without id", ErrInvalid, catalogID)
	}
	if seen[q.ID] {
		return fmt.Errorf("%w %s: duplicate question id %q", ErrInvalid, catalogID, q.ID)
	}
	seen[q.ID] = true
	if !q.Type.Valid() {
		return fmt.Errorf("%w %s: question %q has unknown type %q", ErrInvalid, catalogID, q.ID, q.Type)
	}
	values := map[string]bool{}
	for _, o := range q.Options {
		if values[o.Value] {
			return fmt.Errorf("%w %s: question %q repeats option value %q", ErrInvalid, catalogID, q.ID, o.Value)
		}
		values[o.Value] = true
	}
	return nil
}

// Registry maps quiz identifiers to catalogs. It is built once at startup.
type Registry struct {
	catalogs map[string]*Catalog
	order    []string
}

// NewRegistry builds a registry from already parsed catalogs
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[string]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if _, dup := r.catalogs[c.id]; dup {
			return nil, fmt.Errorf("%w: duplicate quiz %q", ErrInvalid, c.id)
		}
		r.catalogs[c.id] = c
		r.order = append(r.order, c.id)
	}
	return r, nil
}

// LoadDefaults parses the catalogs compiled into the binary
func LoadDefaults() (*Registry, error) {
	return loadFS(builtin, "catalogs")
}

// LoadDir parses every *.yaml file of dir. An empty dir means the built-in catalogs.
func LoadDir(dir string) (*Registry, error) {
	if dir == "" {
		return LoadDefaults()
	}
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, dir string) (*Registry, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no catalog files in %s", ErrInvalid, dir)
	}
	sort.Strings(names)
	var cats []*Catalog
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		c, err := Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cats = append(cats, c)
	}
	return NewRegistry(cats...)
}

// Get returns the catalog for a quiz identifier
func (r *Registry) Get(quizID string) (*Catalog, error) {
	c, ok := r.catalogs[quizID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuiz, quizID)
	}
	return c, nil
}

// IDs lists quiz identifiers in load order
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// View is the published shape of a catalog: every path of the initial
// question resolved to its full effective sequence
type View struct {
	ID          string                      `json:"id"`
	Title       string                      `json:"title"`
	ResultsPath string                      `json:"resultsPath"`
	Initial     model.Question              `json:"initial"`
	Paths       map[string][]model.Question `json:"paths"`
	Brands      []model.Brand               `json:"brands"`
}

// View resolves the catalog for publishing
func (c *Catalog) View() View {
	v := View{
		ID:          c.id,
		Title:       c.title,
		ResultsPath: c.resultsPath,
		Initial:     c.InitialQuestion(),
		Paths:       map[string][]model.Question{},
		Brands:      c.Brands(),
	}
	for _, key := range c.PathKeys(c.initial.ID) {
		seq, _ := c.Expand(c.InitialSequence(), c.initial.ID, key)
		v.Paths[key] = seq
	}
	return v
}
