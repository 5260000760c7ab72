package model

// Mode defines the input shape of a question
type Mode string

const (
	ModeRadio Mode = "radio" // Single choice among Choices, stored under the "options" field
	ModeCheck Mode = "check" // Independent boolean boxes, optional companion text fields
	ModeText  Mode = "text"  // Free text fields
)

// FieldKind defines how a single form field is parsed and validated
type FieldKind string

const (
	FieldBoolean FieldKind = "boolean"
	FieldChoice  FieldKind = "choice"
	FieldText    FieldKind = "text"
	FieldEmail   FieldKind = "email"
)

// OptionsField is the field name radio questions store their choice under
const OptionsField = "options"

// Choice is one selectable value of a radio question
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Field is a statically declared form field
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Label    string    `json:"label,omitempty" yaml:"label"`
	Required bool      `json:"required,omitempty" yaml:"required"`
	// Validation messages, defaults apply when empty
	RequiredMessage string `json:"-" yaml:"requiredMessage"`
	InvalidMessage  string `json:"-" yaml:"invalidMessage"`
}
