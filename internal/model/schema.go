package model

import (
	"math"
	"strconv"
	"strings"
)

// Schema is the ordered, versioned element collection of a template.
// Element order is the reading order and the layout input.
type Schema struct {
	Version  int       `json:"version"`
	Elements []Element `json:"elements"`
}

// NewSchema returns an empty current-version schema
func NewSchema() Schema {
	return Schema{Version: SchemaVersion, Elements: []Element{}}
}

// Clone returns a deep copy of s
func (s Schema) Clone() Schema {
	out := Schema{Version: s.Version, Elements: make([]Element, len(s.Elements))}
	for i, e := range s.Elements {
		out.Elements[i] = e.Clone()
	}
	return out
}

// Names returns the data names in schema order
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Elements))
	for _, e := range s.Elements {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names
}

// Index returns the position of the element with the given id, or -1
func (s Schema) Index(id string) int {
	for i, e := range s.Elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// ByName returns the data element with the given name
func (s Schema) ByName(name string) (Element, bool) {
	for _, e := range s.Elements {
		if e.Name == name && e.Type.HasData() {
			return e, true
		}
	}
	return Element{}, false
}

// FormData maps element names to values. Values are string, float64 or nil.
type FormData map[string]any

// Clone returns a shallow copy; values are immutable scalars
func (f FormData) Clone() FormData {
	out := make(FormData, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Number reads key as a number. Numeric strings are accepted; empty and
// non-numeric values report ok=false with present telling them apart.
func (f FormData) Number(key string) (n float64, present bool, ok bool) {
	v, exists := f[key]
	if !exists || v == nil {
		return 0, false, false
	}
	switch t := v.(type) {
	case float64:
		return t, true, !math.IsNaN(t)
	case int:
		return float64(t), true, true
	case int64:
		return float64(t), true, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, true, false
		}
		return parsed, true, !math.IsNaN(parsed)
	}
	return 0, true, false
}

// Text reads key as a trimmed string
func (f FormData) Text(key string) string {
	return strings.TrimSpace(Stringify(f[key]))
}

// IsEmpty reports whether v counts as no value
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Stringify renders a form value the way browsers stringify it: integral
// numbers without a fraction, nil as the empty string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
