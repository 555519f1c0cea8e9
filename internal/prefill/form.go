package prefill

import "clinicdocs/internal/model"

// Seed builds the initial form values of s from data. Elements whose source
// field resolves to nothing are left out.
func Seed(s model.Schema, data model.PrefillData) model.FormData {
	values := model.FormData{}
	for _, el := range s.Elements {
		if !el.Prefilled() || el.Name == "" {
			continue
		}
		if v, ok := Resolve(el.Prefill.Source, el.Prefill.Field, data); ok {
			values[el.Name] = v
		}
	}
	return values
}

// ReadOnlyFields returns the names of elements whose value only the server
// may set.
func ReadOnlyFields(s model.Schema) []string {
	var names []string
	for _, el := range s.Elements {
		if el.ReadOnly() && el.Name != "" {
			names = append(names, el.Name)
		}
	}
	return names
}

// Merge applies user edits over seeded values. Edits to read-only fields are
// ignored; edits to other prefilled fields replace the default.
func Merge(s model.Schema, seeded, edits model.FormData) model.FormData {
	out := seeded.Clone()
	readOnly := make(map[string]bool)
	for _, name := range ReadOnlyFields(s) {
		readOnly[name] = true
	}
	for k, v := range edits {
		if readOnly[k] {
			continue
		}
		out[k] = v
	}
	return out
}
