package survey

import (
	"html"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"provsurvey/internal/model"
)

const (
	defaultRequiredMessage = "This field is required."
	defaultInvalidMessage  = "Invalid email address."
	invalidChoiceMessage   = "Not a valid choice"
)

// textPolicy strips markup from free text answers
var textPolicy = bluemonday.StrictPolicy()

// Parse validates a submitted form against q. On success it returns only the
// semantic fields worth persisting: checked boxes as "True", non-empty text,
// the chosen radio value or the None sentinel.
func (q *Question) Parse(values map[string]string) (model.Fields, model.ValidationErrors) {
	out := make(model.Fields)
	errs := make(model.ValidationErrors)

	if q.Mode == model.ModeRadio {
		v := strings.TrimSpace(values[model.OptionsField])
		switch {
		case v == "" || v == model.NoneValue:
			if !q.AllowNone {
				errs[model.OptionsField] = invalidChoiceMessage
				break
			}
			out[model.OptionsField] = model.NoneValue
		case !q.hasChoice(v):
			errs[model.OptionsField] = invalidChoiceMessage
		default:
			out[model.OptionsField] = v
		}
		return finish(out, errs)
	}

	for _, f := range q.Fields {
		raw := values[f.Name]
		switch f.Kind {
		case model.FieldBoolean:
			if isChecked(raw) {
				out[f.Name] = model.CheckedValue
			}
		case model.FieldText, model.FieldEmail:
			v := sanitize(raw)
			if v == "" {
				if f.Required {
					errs[f.Name] = orDefault(f.RequiredMessage, defaultRequiredMessage)
				}
				continue
			}
			if f.Kind == model.FieldEmail && !validEmail(v) {
				errs[f.Name] = orDefault(f.InvalidMessage, defaultInvalidMessage)
				continue
			}
			out[f.Name] = v
		}
	}
	return finish(out, errs)
}

func finish(out model.Fields, errs model.ValidationErrors) (model.Fields, model.ValidationErrors) {
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (q *Question) hasChoice(v string) bool {
	for _, c := range q.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// FieldViews builds the render payload of q prefilled with values
func (q *Question) FieldViews(values model.Fields, errs model.ValidationErrors) []model.FieldView {
	views := make([]model.FieldView, 0, len(q.Fields))
	for _, f := range q.Fields {
		v := model.FieldView{
			Name:     f.Name,
			Kind:     f.Kind,
			Label:    f.Label,
			Required: f.Required,
			Value:    values[f.Name],
			Error:    errs[f.Name],
		}
		if f.Kind == model.FieldChoice {
			v.Choices = q.Choices
		}
		views = append(views, v)
	}
	return views
}

// Format renders the stored fields of q as one export cell. Radio answers
// and checked boxes print their labels unless raw is set; an "_e" choice or
// box gets the companion text field appended in parentheses.
func (q *Question) Format(fields model.Fields, raw bool, sep string) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for _, f := range q.Fields {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		switch q.Mode {
		case model.ModeRadio:
			name := q.ChoiceLabel(v)
			if raw {
				name = v
			}
			parts = append(parts, name+extra(v, fields))
		case model.ModeCheck:
			if f.Kind != model.FieldBoolean || v != model.CheckedValue {
				continue
			}
			name := f.Label
			if raw || name == "" {
				name = f.Name
			}
			parts = append(parts, name+extra(f.Name, fields))
		default:
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func extra(name string, fields model.Fields) string {
	base, ok := strings.CutSuffix(name, "_e")
	if !ok {
		return ""
	}
	if text, ok := fields[base]; ok {
		return "(" + text + ")"
	}
	return ""
}

func isChecked(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "false")
}

// maxSanitizePasses bounds the strip/unescape loop for nested entity encodings
const maxSanitizePasses = 8

// sanitize strips markup and decodes entities until the text is stable, so
// entity-encoded markup cannot reappear once decoded
func sanitize(v string) string {
	for range maxSanitizePasses {
		next := html.UnescapeString(textPolicy.Sanitize(v))
		if next == v {
			return strings.TrimSpace(v)
		}
		v = next
	}
	return ""
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return false
	}
	_, domain, _ := strings.Cut(v, "@")
	return strings.Contains(domain, ".")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
