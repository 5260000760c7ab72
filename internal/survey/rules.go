package survey

import (
	"fmt"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"provsurvey/internal/model"
)

// Snapshot is every stored answer of one respondent keyed by question id
type Snapshot map[string]model.Fields

// NewSnapshot groups answer rows by question
func NewSnapshot(answers []model.Answer) Snapshot {
	snap := make(Snapshot)
	for _, a := range answers {
		fields, ok := snap[a.QuestionID]
		if !ok {
			fields = make(model.Fields)
			snap[a.QuestionID] = fields
		}
		fields[a.Field] = a.Value
	}
	return snap
}

// Option returns the radio choice stored for q, or def ("no" when omitted)
func (s Snapshot) Option(q string, def ...string) string {
	if v, ok := s[q][model.OptionsField]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return "no"
}

// Count returns the number of checked boolean fields of q
func (s Snapshot) Count(q string) int {
	n := 0
	for _, v := range s[q] {
		if v == model.CheckedValue {
			n++
		}
	}
	return n
}

// Answered reports whether q holds a meaningful answer
func (s Snapshot) Answered(q string) bool {
	fields := s[q]
	if len(fields) == 0 {
		return false
	}
	return fields[model.OptionsField] != model.NoneValue
}

// Outcome is the result of running a rule list
type Outcome struct {
	Erase []string
	Goto  string // empty when no matching rule jumps
}

// EvalSkip runs the precomputation rules of q. Erased questions are removed
// from snap as rules match.
func (q *Question) EvalSkip(snap Snapshot) (Outcome, error) {
	return runRules(q.ID, "skip", q.Skip, snap)
}

// EvalNext runs the next-state rules of q. A valid registry guarantees a goto.
func (q *Question) EvalNext(snap Snapshot) (Outcome, error) {
	return runRules(q.ID, "next", q.Next, snap)
}

func runRules(id, kind string, rules []Rule, snap Snapshot) (Outcome, error) {
	var out Outcome
	for i, rule := range rules {
		ok, err := rule.matches(snap)
		if err != nil {
			return out, fmt.Errorf("question %s: %s rule %d: %w", id, kind, i, err)
		}
		if !ok {
			continue
		}
		for _, target := range rule.Erase {
			if !slices.Contains(out.Erase, target) {
				out.Erase = append(out.Erase, target)
			}
			delete(snap, target)
		}
		if rule.Goto != "" {
			out.Goto = rule.Goto
			return out, nil
		}
	}
	return out, nil
}

func (r Rule) matches(snap Snapshot) (bool, error) {
	if r.program == nil {
		return true, nil
	}
	res, err := expr.Run(r.program, ruleEnv(snap))
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// ruleEnv exposes the answer helpers to rule expressions
func ruleEnv(snap Snapshot) map[string]any {
	return map[string]any{
		"option": func(q string, def ...string) string {
			return snap.Option(q, def...)
		},
		"checked": func(q, field string) bool {
			return snap[q][field] == model.CheckedValue
		},
		"count": func(q string) int {
			return snap.Count(q)
		},
		"answered": func(q string) bool {
			return snap.Answered(q)
		},
		"value": func(q, field string) string {
			return snap[q][field]
		},
	}
}

func compileRule(when string) (*vm.Program, error) {
	return expr.Compile(when, expr.Env(ruleEnv(nil)), expr.AsBool())
}
