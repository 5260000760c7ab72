package model

import "time"

// Fields maps a field name to its stored value for one (respondent, question) pair
type Fields map[string]string

// Clone returns an independent copy of f
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Answer is one persisted row: (respondent, question, field) -> value
type Answer struct {
	RespondentID string    `json:"respondentId" bson:"respondentId"`
	QuestionID   string    `json:"questionId" bson:"questionId"`
	Field        string    `json:"field" bson:"field"`
	Value        string    `json:"value" bson:"value"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Virtual states of the survey graph
const (
	StateIndex  = "index"
	StateFinish = "finish"
	StateLast   = "last" // goto target meaning "most recently visited question"
)

// Marker answers recorded under the virtual states
const (
	MarkerField   = "submit"
	MarkerStarted = "yes"     // index/submit
	MarkerRestart = "restart" // finish/submit, old respondent restarted
	MarkerFinal   = "final"   // finish/submit, survey completed
)

// NoneValue is stored when an optional radio question is submitted without a selection
const NoneValue = "None"

// CheckedValue is stored for a checked boolean field
const CheckedValue = "True"

// Submit actions
const (
	ActionNext    = "next"
	ActionStart   = "start"
	ActionRestart = "restart"
)

// Submission is a posted question form
type Submission struct {
	Action string            // Value of the submit control
	Values map[string]string // Form values, first value per key
}

// Reserved form keys that are never persisted
var ReservedFormKeys = []string{"submit", "csrf_token"}
