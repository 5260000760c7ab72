package model

import "slices"

// Position is the ephemeral per-respondent survey state
type Position struct {
	RespondentID string   `json:"respondentId,omitempty"`
	Locale       string   `json:"locale"`
	Current      string   `json:"current,omitempty"`
	Visited      []string `json:"visited,omitempty"`  // Question ids shown, first-visit order
	Answered     []string `json:"answered,omitempty"` // Question ids with a meaningful stored answer
	Flash        string   `json:"flash,omitempty"`    // One-shot notice for the next render
	Finishing    bool     `json:"finishing,omitempty"` // The last transition led to finish
}

// Started reports whether a respondent identity exists
func (p Position) Started() bool {
	return p.RespondentID != ""
}

// Clone returns a copy that does not share slices with p
func (p Position) Clone() Position {
	p.Visited = slices.Clone(p.Visited)
	p.Answered = slices.Clone(p.Answered)
	return p
}

// HasVisited reports whether id was shown to the respondent
func (p Position) HasVisited(id string) bool {
	return slices.Contains(p.Visited, id)
}

// IsAnswered reports whether id currently holds a meaningful answer
func (p Position) IsAnswered(id string) bool {
	return slices.Contains(p.Answered, id)
}

// Visit marks id as shown
func (p *Position) Visit(id string) {
	if !p.HasVisited(id) {
		p.Visited = append(p.Visited, id)
	}
}

// SetAnswered records whether id holds a meaningful answer
func (p *Position) SetAnswered(id string, answered bool) {
	if answered {
		if !p.IsAnswered(id) {
			p.Answered = append(p.Answered, id)
		}
		return
	}
	p.Answered = slices.DeleteFunc(p.Answered, func(s string) bool { return s == id })
}

// Forget drops id from both the visited and the answered sets
func (p *Position) Forget(id string) {
	p.Visited = slices.DeleteFunc(p.Visited, func(s string) bool { return s == id })
	p.SetAnswered(id, false)
}

// Reset drops everything but the locale
func (p Position) Reset() Position {
	return Position{Locale: p.Locale}
}
