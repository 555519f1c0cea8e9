// Package submission validates filled forms on the server. Read-only
// prefilled fields are recomputed from persisted records and any client
// value for them is checked, then discarded.
package submission

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
	"clinicdocs/internal/schema"

	"go.uber.org/zap"
)

// Error codes of FieldError
const (
	CodeRequired   = "required"
	CodeTampered   = "tampered"
	CodeConstraint = "constraint"
)

// FieldError describes one rejected field
type FieldError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

// Result is the outcome of a submission check. SanitizedValues is the only
// data that may be persisted.
type Result struct {
	Valid           bool           `json:"valid"`
	SanitizedValues model.FormData `json:"sanitizedValues"`
	Errors          []FieldError   `json:"errors"`
}

// Tampered reports whether any read-only field was altered by the client
func (r *Result) Tampered() bool {
	for _, e := range r.Errors {
		if e.Code == CodeTampered {
			return true
		}
	}
	return false
}

// PrefillLoader rebuilds prefill data from persisted records
type PrefillLoader interface {
	Load(ctx context.Context, req prefill.Request) model.PrefillData
}

// Validator checks submissions
type Validator struct {
	loader   PrefillLoader
	compiler *schema.Compiler
	calc     *calc.Calculator
	log      *zap.Logger
}

// NewValidator creates a submission validator. A nil calculator uses the
// wall clock.
func NewValidator(loader PrefillLoader, compiler *schema.Compiler, calculator *calc.Calculator, log *zap.Logger) *Validator {
	if calculator == nil {
		calculator = calc.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{loader: loader, compiler: compiler, calc: calculator, log: log}
}

// ValidateSubmission checks submitted against s. The returned error is
// reserved for infrastructure failures; rejected submissions come back as
// a Result with Valid=false.
func (v *Validator) ValidateSubmission(ctx context.Context, s model.Schema, submitted model.FormData, req prefill.Request) (*Result, error) {
	// never trust client-provided prefill data
	data := v.loader.Load(ctx, req)

	res := &Result{SanitizedValues: model.FormData{}, Errors: []FieldError{}}
	readOnly := map[string]bool{}

	for _, el := range s.Elements {
		if el.Name == "" || !el.Type.HasData() {
			continue
		}
		got, sent := submitted[el.Name]

		if el.ReadOnly() {
			readOnly[el.Name] = true
			server, ok := prefill.Resolve(el.Prefill.Source, el.Prefill.Field, data)
			if sent && !sameValue(got, server, ok) {
				res.Errors = append(res.Errors, FieldError{
					Field:    el.Name,
					Code:     CodeTampered,
					Message:  fmt.Sprintf("%s is read-only and was modified", labelOf(el)),
					Expected: model.Stringify(server),
					Received: model.Stringify(got),
				})
				v.log.Warn("Read-only field tampered",
					zap.String("field", el.Name),
					zap.String("source", string(el.Prefill.Source)),
					zap.String("prefill_field", el.Prefill.Field),
				)
			}
			// the server value always wins, matching or not
			if ok {
				res.SanitizedValues[el.Name] = server
			} else {
				res.SanitizedValues[el.Name] = nil
			}
			continue
		}

		if el.Type == model.ElementCalculated {
			// recomputed below from the sanitized inputs
			continue
		}
		if sent {
			res.SanitizedValues[el.Name] = coerce(el, got)
		}
	}

	for name, r := range v.calc.ComputeAll(s, res.SanitizedValues) {
		if readOnly[name] {
			continue
		}
		res.SanitizedValues[name] = r.Value()
	}

	for _, el := range s.Elements {
		if !el.Required || el.Name == "" || !el.Type.HasData() {
			continue
		}
		if model.IsEmpty(res.SanitizedValues[el.Name]) {
			res.Errors = append(res.Errors, FieldError{
				Field:   el.Name,
				Code:    CodeRequired,
				Message: fmt.Sprintf("%s is required", labelOf(el)),
			})
		}
	}

	if v.compiler != nil {
		violations, err := v.compiler.CheckValues(ctx, s, constrained(s, res.SanitizedValues))
		if err != nil {
			return nil, fmt.Errorf("failed to check field constraints: %w", err)
		}
		for _, vi := range violations {
			res.Errors = append(res.Errors, FieldError{Field: vi.Field, Code: CodeConstraint, Message: vi.Message})
		}
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// sameValue compares a client value with the server value by their string
// forms. A missing server value only matches an empty client value.
func sameValue(client, server any, serverOK bool) bool {
	if !serverOK {
		return model.IsEmpty(client)
	}
	return model.Stringify(client) == model.Stringify(server)
}

// coerce turns numeric strings into numbers for numeric elements
func coerce(el model.Element, v any) any {
	s, ok := v.(string)
	if !ok || !el.Type.IsNumeric() {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return v
}

// constrained leaves out read-only values, which are server data and not
// subject to author constraints.
func constrained(s model.Schema, values model.FormData) model.FormData {
	out := values.Clone()
	for _, name := range prefill.ReadOnlyFields(s) {
		delete(out, name)
	}
	return out
}

func labelOf(el model.Element) string {
	if l := strings.TrimSpace(el.Label); l != "" {
		return l
	}
	return el.Name
}
