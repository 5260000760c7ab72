// Package survey holds the question registry of one survey revision: question
// definitions in canonical order together with their compiled branch rules.
// A Registry is built once by Load and never mutated afterwards.
package survey

import (
	"slices"

	"github.com/expr-lang/expr/vm"

	"provsurvey/internal/model"
)

// Rule is one branch instruction. A rule without a condition always matches.
type Rule struct {
	When  string   `json:"when,omitempty"`
	Erase []string `json:"erase,omitempty"`
	Goto  string   `json:"goto,omitempty"`

	program *vm.Program
}

// Question is an immutable question definition
type Question struct {
	ID        string         `json:"id"`
	Mode      model.Mode     `json:"mode"`
	Title     string         `json:"title"`
	Minutes   int            `json:"minutes"`
	Requires  []string       `json:"requires"`
	AllowNone bool           `json:"allowNone,omitempty"`
	Choices   []model.Choice `json:"choices,omitempty"`
	Fields    []model.Field  `json:"fields"`
	Skip      []Rule         `json:"skip,omitempty"`
	Next      []Rule         `json:"next"`
}

// FieldNames returns the persisted field names in declaration order
func (q *Question) FieldNames() []string {
	names := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field looks up a field definition by name
func (q *Question) Field(name string) (model.Field, bool) {
	for _, f := range q.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.Field{}, false
}

// ChoiceLabel returns the label of a radio value, or the value itself when unknown
func (q *Question) ChoiceLabel(value string) string {
	for _, c := range q.Choices {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

// Registry is the ordered question table of one survey revision
type Registry struct {
	revision     string
	first        string
	indexMinutes int
	questions    []*Question
	byID         map[string]*Question
	position     map[string]int
}

// Revision returns the revision name
func (r *Registry) Revision() string { return r.revision }

// First returns the id of the first question after the start page
func (r *Registry) First() string { return r.first }

// IndexMinutes is the remaining-time estimate shown on the start page
func (r *Registry) IndexMinutes() int { return r.indexMinutes }

// Get returns the question definition for id
func (r *Registry) Get(id string) (*Question, error) {
	q, ok := r.byID[id]
	if !ok {
		return nil, &model.NotFoundError{QuestionID: id}
	}
	return q, nil
}

// Fields returns the ordered field names of id, without the submit control
func (r *Registry) Fields(id string) ([]string, error) {
	q, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return q.FieldNames(), nil
}

// OrderedIDs returns every question id in canonical survey order
func (r *Registry) OrderedIDs() []string {
	ids := make([]string, 0, len(r.questions))
	for _, q := range r.questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Questions returns the definitions in canonical order
func (r *Registry) Questions() []*Question {
	return slices.Clone(r.questions)
}

// Index returns the canonical position of id. The virtual start state is -1,
// the virtual finish state sorts after every question. Unknown ids report false.
func (r *Registry) Index(id string) (int, bool) {
	switch id {
	case model.StateIndex:
		return -1, true
	case model.StateFinish:
		return len(r.questions), true
	}
	i, ok := r.position[id]
	return i, ok
}
