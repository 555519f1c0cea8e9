package schema

import "clinicdocs/internal/model"

// FormSchema builds the JSON Schema of the values of s. Keys not declared by
// s are allowed here; callers drop them separately.
func FormSchema(s model.Schema) map[string]any {
	props := map[string]any{}
	for _, el := range s.Elements {
		if el.Name == "" || !el.Type.HasData() {
			continue
		}
		if fs := FieldSchema(el); fs != nil {
			props[el.Name] = fs
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// FieldSchema returns the constraint schema of one element, or nil when the
// element has nothing to check.
func FieldSchema(el model.Element) map[string]any {
	switch {
	case el.Type == model.ElementCalculated:
		// server computed, either a number or a placeholder message
		return nil
	case el.Type.IsNumeric():
		fs := map[string]any{"type": "number"}
		if np, ok := el.Number(); ok {
			if np.Min != nil {
				fs["minimum"] = *np.Min
			}
			if np.Max != nil {
				fs["maximum"] = *np.Max
			}
		}
		return fs
	case el.Type.IsChoice():
		cp, ok := el.Choice()
		if !ok || len(cp.Options) == 0 {
			return map[string]any{"type": "string"}
		}
		enum := make([]any, len(cp.Options))
		for i, o := range cp.Options {
			enum[i] = o
		}
		return map[string]any{"type": "string", "enum": enum}
	case el.Type == model.ElementDate:
		return map[string]any{"type": "string", "format": "date"}
	case el.Type.IsTextLike():
		fs := map[string]any{"type": "string"}
		if v := el.Validation; v != nil {
			if v.MinLength != nil {
				fs["minLength"] = *v.MinLength
			}
			if v.MaxLength != nil {
				fs["maxLength"] = *v.MaxLength
			}
			if v.Pattern != "" {
				fs["pattern"] = v.Pattern
			}
		}
		return fs
	}
	return nil
}
