package model

// FieldView is a form field as rendered to the respondent
type FieldView struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Label    string    `json:"label,omitempty"`
	Required bool      `json:"required,omitempty"`
	Choices  []Choice  `json:"choices,omitempty"`
	Value    string    `json:"value,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ProgressItem is one entry of the navigation bar
type ProgressItem struct {
	ID       string `json:"id"`
	Current  bool   `json:"current"`
	Answered bool   `json:"answered"`
}

// Progress is the navigation/progress indicator
type Progress struct {
	MinutesRemaining int            `json:"minutesRemaining"`
	Finished         bool           `json:"finished"`
	Items            []ProgressItem `json:"items"`
}

// QuestionView is the render payload of one survey page
type QuestionView struct {
	Revision string           `json:"revision"`
	ID       string           `json:"id"`
	Mode     Mode             `json:"mode,omitempty"`
	Title    string           `json:"title,omitempty"`
	Locale   string           `json:"locale"`
	Fields   []FieldView      `json:"fields,omitempty"`
	Errors   ValidationErrors `json:"errors,omitempty"`
	Actions  []string         `json:"actions,omitempty"`
	Flash    string           `json:"flash,omitempty"`
	Progress Progress         `json:"progress"`
}
