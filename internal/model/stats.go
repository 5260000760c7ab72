package model

// SurveyStats are live counters of one survey revision
type SurveyStats struct {
	Revision  string           `json:"revision"`
	Started   int64            `json:"started"`
	Finished  int64            `json:"finished"`
	Restarted int64            `json:"restarted"`
	Answers   map[string]int64 `json:"answers"` // saves per question id
}
