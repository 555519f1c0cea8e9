package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// NamePattern is the identifier pattern every data element name must match
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var patientBindings = map[ElementType]string{
	ElementPatientName:   "patient_name",
	ElementPatientEmail:  "patient_email",
	ElementPatientPhone:  "patient_phone",
	ElementPatientAge:    "patient_age",
	ElementPatientGender: "patient_gender",
}

// NewDefaultElement fabricates a valid element of type t whose name does not
// collide with existingNames. Ids are ULIDs, unique within the process.
func NewDefaultElement(t ElementType, existingNames []string) Element {
	label := t.DisplayName()
	e := Element{
		ID:         ulid.Make().String(),
		Type:       t,
		Label:      label,
		Properties: PropertiesFor(t),
		Position:   Position{Width: GridColumns},
	}

	if t.HasData() {
		e.Name = UniqueName(SnakeName(label), existingNames)
	}

	switch p := e.Properties.(type) {
	case *ChoiceProps:
		p.Options = []string{"Option 1", "Option 2", "Option 3"}
	case *CalculatedProps:
		p.Calculation = CalcBMI
		p.Unit = "kg/m²"
	case *NumberProps:
		step := 1.0
		p.Step = &step
	case *ParagraphProps:
		p.Rows = 4
	case *HeaderProps:
		p.Text = label
		p.Level = 2
	case *FooterProps:
		p.Text = "Signature"
	case *DividerProps:
		p.Style = "solid"
	}

	if field, ok := patientBindings[t]; ok {
		e.Prefill = &PrefillConfig{
			Enabled:  true,
			Source:   SourcePatient,
			Field:    field,
			Readonly: true,
		}
	}
	return e
}

// SnakeName turns a human label or camelCase identifier into a name that
// matches NamePattern.
func SnakeName(label string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r < unicode.MaxASCII && unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case r < unicode.MaxASCII && (unicode.IsLower(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			prevLower = true
		default:
			b.WriteByte('_')
			prevLower = false
		}
	}

	name := collapseUnderscores(b.String())
	if name == "" {
		return "field"
	}
	if name[0] < 'a' || name[0] > 'z' {
		name = "field_" + name
	}
	return name
}

func collapseUnderscores(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	return strings.Join(parts, "_")
}

// UniqueName returns base, or base with the lowest free numeric suffix
func UniqueName(base string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[n] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
