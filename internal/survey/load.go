package survey

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"provsurvey/internal/model"
)

//go:embed revisions/*.yaml
var revisionFS embed.FS

type document struct {
	Revision     string        `yaml:"revision"`
	First        string        `yaml:"first"`
	IndexMinutes int           `yaml:"indexMinutes"`
	Questions    []questionDoc `yaml:"questions"`
}

type questionDoc struct {
	ID        string         `yaml:"id"`
	Mode      model.Mode     `yaml:"mode"`
	Title     string         `yaml:"title"`
	Minutes   int            `yaml:"minutes"`
	Requires  []string       `yaml:"requires"`
	AllowNone bool           `yaml:"allowNone"`
	Choices   []model.Choice `yaml:"choices"`
	Fields    []model.Field  `yaml:"fields"`
	Skip      []ruleDoc      `yaml:"skip"`
	Next      []ruleDoc      `yaml:"next"`
}

type ruleDoc struct {
	When  string   `yaml:"when"`
	Erase []string `yaml:"erase"`
	Goto  string   `yaml:"goto"`
}

var reservedIDs = []string{model.StateIndex, model.StateFinish, model.StateLast}

// Revisions lists the embedded revision names
func Revisions() []string {
	entries, err := revisionFS.ReadDir("revisions")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// LoadRevision builds the registry of an embedded revision
func LoadRevision(name string) (*Registry, error) {
	f, err := revisionFS.Open(path.Join("revisions", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown survey revision %q", name)
	}
	defer f.Close()
	return Load(f)
}

// LoadFile builds a registry from a revision file on disk
func LoadFile(name string) (*Registry, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a revision document
func Load(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode survey: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Registry, error) {
	if doc.Revision == "" {
		return nil, errors.New("survey: missing revision name")
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("survey %s: no questions", doc.Revision)
	}

	reg := &Registry{
		revision:     doc.Revision,
		first:        doc.First,
		indexMinutes: doc.IndexMinutes,
		byID:         make(map[string]*Question, len(doc.Questions)),
		position:     make(map[string]int, len(doc.Questions)),
	}
	for i, qd := range doc.Questions {
		if qd.ID == "" {
			return nil, fmt.Errorf("survey %s: question %d has no id", doc.Revision, i)
		}
		if slices.Contains(reservedIDs, qd.ID) {
			return nil, fmt.Errorf("survey %s: question id %q is reserved", doc.Revision, qd.ID)
		}
		if _, dup := reg.byID[qd.ID]; dup {
			return nil, fmt.Errorf("survey %s: duplicate question id %q", doc.Revision, qd.ID)
		}
		q := &Question{
			ID:        qd.ID,
			Mode:      qd.Mode,
			Title:     qd.Title,
			Minutes:   qd.Minutes,
			Requires:  qd.Requires,
			AllowNone: qd.AllowNone,
			Choices:   qd.Choices,
			Fields:    qd.Fields,
		}
		reg.questions = append(reg.questions, q)
		reg.byID[q.ID] = q
		reg.position[q.ID] = i
	}
	if reg.first == "" {
		reg.first = reg.questions[0].ID
	}
	if _, ok := reg.byID[reg.first]; !ok {
		return nil, fmt.Errorf("survey %s: first question %q not found", doc.Revision, reg.first)
	}

	var errs []error
	for i, qd := range doc.Questions {
		q := reg.questions[i]
		if err := reg.compile(q, qd); err != nil {
			errs = append(errs, fmt.Errorf("survey %s: question %s: %w", doc.Revision, q.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) compile(q *Question, qd questionDoc) error {
	switch q.Mode {
	case model.ModeRadio:
		if len(q.Choices) == 0 {
			return errors.New("radio question without choices")
		}
		if len(q.Fields) > 0 {
			return errors.New("radio question declares fields")
		}
		q.Fields = []model.Field{{
			Name:     model.OptionsField,
			Kind:     model.FieldChoice,
			Required: !q.AllowNone,
		}}
	case model.ModeCheck, model.ModeText:
		if len(q.Fields) == 0 {
			return fmt.Errorf("%s question without fields", q.Mode)
		}
		if len(q.Choices) > 0 {
			return fmt.Errorf("%s question declares choices", q.Mode)
		}
		for _, f := range q.Fields {
			if err := checkField(q.Mode, f); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown mode %q", q.Mode)
	}

	if len(q.Requires) == 0 {
		return errors.New("requires is empty")
	}
	for _, id := range q.Requires {
		if id != model.StateIndex && !r.has(id) {
			return fmt.Errorf("requires unknown question %q", id)
		}
	}

	var err error
	if q.Skip, err = r.compileRules(qd.Skip); err != nil {
		return fmt.Errorf("skip: %w", err)
	}
	if q.Next, err = r.compileRules(qd.Next); err != nil {
		return fmt.Errorf("next: %w", err)
	}
	if len(q.Next) == 0 {
		return errors.New("next rules are empty")
	}
	if tail := q.Next[len(q.Next)-1]; tail.When != "" || tail.Goto == "" {
		return errors.New("next rules must end with an unconditional goto")
	}
	return nil
}

func checkField(mode model.Mode, f model.Field) error {
	if f.Name == "" {
		return errors.New("field without name")
	}
	if slices.Contains(model.ReservedFormKeys, f.Name) {
		return fmt.Errorf("field name %q is reserved", f.Name)
	}
	allowed := []model.FieldKind{model.FieldText, model.FieldEmail}
	if mode == model.ModeCheck {
		allowed = []model.FieldKind{model.FieldBoolean, model.FieldText}
	}
	if !slices.Contains(allowed, f.Kind) {
		return fmt.Errorf("field %s: kind %q not allowed in %s question", f.Name, f.Kind, mode)
	}
	return nil
}

func (r *Registry) compileRules(docs []ruleDoc) ([]Rule, error) {
	rules := make([]Rule, 0, len(docs))
	for i, d := range docs {
		rule := Rule{When: strings.TrimSpace(d.When), Erase: d.Erase, Goto: d.Goto}
		for _, id := range rule.Erase {
			if !r.has(id) {
				return nil, fmt.Errorf("rule %d: erase unknown question %q", i, id)
			}
		}
		if rule.Goto != "" && rule.Goto != model.StateFinish && rule.Goto != model.StateLast && !r.has(rule.Goto) {
			return nil, fmt.Errorf("rule %d: goto unknown question %q", i, rule.Goto)
		}
		if rule.When != "" {
			program, err := compileRule(rule.When)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			rule.program = program
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *Registry) has(id string) bool {
	_, ok := r.byID[id]
	return ok
}
