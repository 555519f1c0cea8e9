// Package legacy converts V1 variable-placeholder templates into element
// schemas.
package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"

	"github.com/oklog/ulid/v2"
)

// ContentWarning is always reported: V1 free text has no structured form
const ContentWarning = "Template content was not migrated; only variables were converted to fields"

// ErrUnrecognized is returned for input that is neither a V1 nor a V2 schema
var ErrUnrecognized = errors.New("unrecognized template format")

// Variable is one V1 placeholder. V1 stores either a bare name or an object.
type Variable struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// UnmarshalJSON accepts "name" and {"name": ...}
func (v *Variable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*v = Variable{Name: name}
		return nil
	}
	type plain Variable
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("variable must be a string or an object: %w", err)
	}
	*v = Variable(p)
	return nil
}

// V1Schema is the legacy template format
type V1Schema struct {
	Variables []Variable `json:"variables"`
	Content   string     `json:"content"`
}

// Result is a migrated schema with the report of what was done
type Result struct {
	Schema    model.Schema `json:"schema"`
	Changes   []string     `json:"changes"`
	Warnings  []string     `json:"warnings"`
	AlreadyV2 bool         `json:"alreadyV2"`
}

// Migrate detects the format of raw and migrates V1 input. V2 input is
// returned unchanged.
func Migrate(raw []byte) (*Result, error) {
	var probe struct {
		Version   *int            `json:"version"`
		Elements  json.RawMessage `json:"elements"`
		Variables json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	if probe.Elements != nil && (probe.Version == nil || *probe.Version >= model.SchemaVersion) {
		var s model.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to parse schema: %w", err)
		}
		if s.Version == 0 {
			s.Version = model.SchemaVersion
		}
		return &Result{
			Schema:    s,
			Changes:   []string{"Schema is already V2; nothing to migrate"},
			Warnings:  []string{},
			AlreadyV2: true,
		}, nil
	}

	if probe.Variables == nil {
		return nil, ErrUnrecognized
	}

	var v1 V1Schema
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, fmt.Errorf("failed to parse V1 template: %w", err)
	}
	return MigrateV1(v1), nil
}

// MigrateV1 converts every variable into one full-width element, one per
// row, in variable order.
func MigrateV1(v1 V1Schema) *Result {
	res := &Result{Schema: model.NewSchema(), Changes: []string{}, Warnings: []string{}}
	var names []string

	for i, v := range v1.Variables {
		raw := strings.TrimSpace(v.Name)
		if raw == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Variable %d has no name and was skipped", i+1))
			continue
		}

		name := model.SnakeName(raw)
		if unique := model.UniqueName(name, names); unique != name {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Variable %q collides with an earlier field and was renamed to %q", raw, unique))
			name = unique
		} else if name != raw {
			res.Changes = append(res.Changes, fmt.Sprintf("Renamed variable %q to %q", raw, name))
		}
		names = append(names, name)

		label := strings.TrimSpace(v.Label)
		if label == "" {
			label = Label(raw)
		}
		if label == "" {
			label = Label(name)
		}

		t := InferType(name)
		el := model.Element{
			ID:         ulid.Make().String(),
			Type:       t,
			Label:      label,
			Name:       name,
			Required:   v.Required,
			Properties: model.PropertiesFor(t),
			Position:   model.Position{Row: len(res.Schema.Elements), Col: 0, Width: model.GridColumns},
			Prefill:    InferPrefill(name),
		}
		applyPlaceholder(el.Properties, v.Placeholder)

		change := fmt.Sprintf("Converted %q to a %s field", raw, t)
		if el.Prefill != nil {
			mode := "read-only"
			if !el.Prefill.Readonly {
				mode = "editable"
			}
			change += fmt.Sprintf(" prefilled from %s.%s (%s)", el.Prefill.Source, el.Prefill.Field, mode)
		}
		res.Changes = append(res.Changes, change)
		res.Schema.Elements = append(res.Schema.Elements, el)
	}

	res.Warnings = append(res.Warnings, ContentWarning)
	return res
}

func applyPlaceholder(p model.Properties, placeholder string) {
	if placeholder == "" {
		return
	}
	switch t := p.(type) {
	case *model.TextProps:
		t.Placeholder = placeholder
	case *model.NumberProps:
		t.Placeholder = placeholder
	case *model.ParagraphProps:
		t.Placeholder = placeholder
	}
}

// Label derives a human label from a snake_case or camelCase variable name
func Label(name string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				flush()
			}
			cur = append(cur, r)
			prevLower = false
		default:
			cur = append(cur, r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	flush()

	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

var (
	dateHints      = []string{"date", "dob", "birth"}
	numberHints    = []string{"age", "weight", "height", "count", "quantity", "amount", "number", "dose", "duration"}
	paragraphHints = []string{
		"notes", "description", "comments", "remarks", "history", "complaint",
		"examination", "findings", "diagnosis", "prescription", "advice", "instructions",
	}
)

// InferType guesses the element type from the variable name
func InferType(name string) model.ElementType {
	n := strings.ToLower(name)
	switch {
	case containsAny(n, dateHints):
		return model.ElementDate
	case containsAny(n, numberHints):
		return model.ElementNumber
	case containsAny(n, paragraphHints):
		return model.ElementParagraph
	}
	return model.ElementText
}

// InferPrefill binds well-known variable names to a prefill source. Rules
// are tried in order; the first match wins.
func InferPrefill(name string) *model.PrefillConfig {
	n := strings.ToLower(name)
	bind := func(source model.PrefillSource, field string, readonly bool) *model.PrefillConfig {
		return &model.PrefillConfig{Enabled: true, Source: source, Field: field, Readonly: readonly}
	}

	switch {
	case n == "patient_id":
		return bind(model.SourcePatient, prefill.FieldPatientID, true)
	case n == "patient" || strings.Contains(n, "patient_name"):
		return bind(model.SourcePatient, prefill.FieldPatientName, true)
	case strings.Contains(n, "phone"):
		return bind(model.SourcePatient, prefill.FieldPatientPhone, true)
	case strings.Contains(n, "email"):
		return bind(model.SourcePatient, prefill.FieldPatientEmail, true)
	case strings.Contains(n, "patient") && strings.Contains(n, "age"):
		return bind(model.SourcePatient, prefill.FieldPatientAge, true)
	case strings.Contains(n, "gender"):
		return bind(model.SourcePatient, prefill.FieldPatientGender, true)
	case n == "doctor_id":
		return bind(model.SourceDoctor, prefill.FieldDoctorID, true)
	case strings.Contains(n, "doctor"):
		return bind(model.SourceDoctor, prefill.FieldDoctorName, true)
	case strings.Contains(n, "clinic"):
		return bind(model.SourceDoctor, prefill.FieldDoctorClinic, true)
	case n == "appointment_date":
		return bind(model.SourceAppointment, prefill.FieldAppointmentDate, true)
	case n == "appointment_time":
		return bind(model.SourceAppointment, prefill.FieldAppointmentTime, true)
	case n == "current_date" || n == "date" || n == "today":
		return bind(model.SourceSystem, prefill.FieldCurrentDate, true)
	case n == "current_time" || n == "time":
		return bind(model.SourceSystem, prefill.FieldCurrentTime, true)
	case strings.Contains(n, "place") || strings.Contains(n, "location"):
		return bind(model.SourceSystem, prefill.FieldPlace, false)
	}
	return nil
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
