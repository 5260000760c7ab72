package service

import (
	"slices"

	"provsurvey/internal/model"
	"provsurvey/internal/survey"
)

// FlashInvalidSession is shown when a question is requested before the survey starts
const FlashInvalidSession = "Invalid Session. Restarting"

// Decision is the verdict of a guard. An empty Redirect means proceed.
type Decision struct {
	Redirect string
	Flash    string
}

// Proceed reports whether the request may continue
func (d Decision) Proceed() bool {
	return d.Redirect == ""
}

// Guard is one step of the navigation pipeline. Guards never touch storage.
type Guard func(q *survey.Question, pos model.Position) Decision

// Navigator runs the guard pipeline and answers "where was the respondent" queries
type Navigator struct {
	registry *survey.Registry
	guards   []Guard
}

// NewNavigator builds the default pipeline: started, then predecessor
func NewNavigator(registry *survey.Registry) *Navigator {
	n := &Navigator{registry: registry}
	n.guards = []Guard{RequireStarted, n.RequirePredecessor}
	return n
}

// Check runs every guard in order and returns the first redirect
func (n *Navigator) Check(q *survey.Question, pos model.Position) Decision {
	for _, g := range n.guards {
		if d := g(q, pos); !d.Proceed() {
			return d
		}
	}
	return Decision{}
}

// RequireStarted sends respondents without an identity back to the start page
func RequireStarted(_ *survey.Question, pos model.Position) Decision {
	if pos.Started() {
		return Decision{}
	}
	return Decision{Redirect: model.StateIndex, Flash: FlashInvalidSession}
}

// RequirePredecessor allows q only when the most recently visited question
// before it is one of its declared predecessors. Otherwise the respondent is
// sent back to that question, or to the first question when nothing but the
// start page was visited.
func (n *Navigator) RequirePredecessor(q *survey.Question, pos model.Position) Decision {
	prev := n.MostRecentBefore(q.ID, pos)
	if slices.Contains(q.Requires, prev) {
		return Decision{}
	}
	if prev == model.StateIndex {
		return Decision{Redirect: n.registry.First()}
	}
	return Decision{Redirect: prev}
}

// MostRecentBefore returns the furthest visited question that precedes id in
// canonical order, or the start state when there is none
func (n *Navigator) MostRecentBefore(id string, pos model.Position) string {
	limit, ok := n.registry.Index(id)
	if !ok {
		return n.LastVisited(pos)
	}
	ids := n.registry.OrderedIDs()
	for i := min(limit, len(ids)) - 1; i >= 0; i-- {
		if pos.HasVisited(ids[i]) {
			return ids[i]
		}
	}
	return model.StateIndex
}

// LastVisited returns the furthest visited question, or the start state
func (n *Navigator) LastVisited(pos model.Position) string {
	return n.MostRecentBefore(model.StateFinish, pos)
}
