// Package validator checks a template schema for structural errors before it
// is saved, and flags likely authoring mistakes as warnings.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
)

// Issue is one finding. Indexes are zero-based element positions.
type Issue struct {
	Index   int    `json:"index"`
	Indexes []int  `json:"indexes,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the validation report. Valid iff there are no errors.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

type report struct {
	errors   []Issue
	warnings []Issue
}

func (r *report) errorf(index int, field, format string, args ...any) {
	r.errors = append(r.errors, Issue{Index: index, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *report) warnf(index int, field, format string, args ...any) {
	r.warnings = append(r.warnings, Issue{Index: index, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks s. It never fails; everything found is in the result.
func Validate(s model.Schema) Result {
	r := &report{}

	if len(s.Elements) == 0 {
		r.warnf(-1, "", "Schema has no elements")
	}

	firstByName := map[string]int{}
	hasRequired := false

	for i, el := range s.Elements {
		if !el.Type.Known() {
			r.errorf(i, "type", "Element %d has unknown type %q", i+1, el.Type)
			continue
		}
		if el.Required && el.Type.HasData() {
			hasRequired = true
		}

		checkLabel(r, i, el)
		checkName(r, i, el, firstByName)
		checkWidth(r, i, el)
		checkProperties(r, i, el)
		checkPrefill(r, i, el)
		checkValidation(r, i, el)
	}

	if len(s.Elements) > 0 && !hasRequired {
		r.warnf(-1, "", "No field is marked as required")
	}

	checkCalculationInputs(r, s)

	return Result{
		Valid:    len(r.errors) == 0,
		Errors:   nonNil(r.errors),
		Warnings: nonNil(r.warnings),
	}
}

func nonNil(issues []Issue) []Issue {
	if issues == nil {
		return []Issue{}
	}
	return issues
}

func checkLabel(r *report, i int, el model.Element) {
	if el.Type == model.ElementDivider {
		return
	}
	if el.Label == "" {
		r.errorf(i, "label", "Element %d (%s) is missing a label", i+1, el.Type)
		return
	}
	if el.Type.HasData() && strings.TrimSpace(el.Label) == "" {
		r.warnf(i, "label", "Element %d (%s) has a blank label", i+1, el.Type)
	}
}

func checkName(r *report, i int, el model.Element, firstByName map[string]int) {
	if !el.Type.HasData() {
		return
	}
	if el.Name == "" {
		r.errorf(i, "name", "Element %d (%s) is missing a field name", i+1, el.Type)
		return
	}
	if !model.NamePattern.MatchString(el.Name) {
		r.errorf(i, "name", "Element %d has invalid field name %q: use lowercase letters, digits and underscores, starting with a letter", i+1, el.Name)
	}
	if first, dup := firstByName[el.Name]; dup {
		r.errors = append(r.errors, Issue{
			Index:   i,
			Indexes: []int{first, i},
			Field:   "name",
			Message: fmt.Sprintf("Duplicate field name %q at elements %d and %d", el.Name, first+1, i+1),
		})
		return
	}
	firstByName[el.Name] = i
}

func checkWidth(r *report, i int, el model.Element) {
	w := el.Position.Width
	if w < 1 || w > model.GridColumns {
		r.errorf(i, "position.width", "Element %d has width %d outside 1..%d", i+1, w, model.GridColumns)
	}
}

func checkProperties(r *report, i int, el model.Element) {
	switch {
	case el.Type.IsChoice():
		cp, ok := el.Choice()
		if !ok || len(cp.Options) == 0 {
			r.errorf(i, "properties.options", "Element %d (%s) has no options", i+1, el.Type)
			return
		}
		seen := map[string]bool{}
		for j, o := range cp.Options {
			if strings.TrimSpace(o) == "" {
				r.errorf(i, "properties.options", "Element %d option %d is empty", i+1, j+1)
				continue
			}
			if seen[o] {
				r.errorf(i, "properties.options", "Element %d has duplicate option %q", i+1, o)
			}
			seen[o] = true
		}
	case el.Type == model.ElementNumber:
		np, ok := el.Number()
		if ok && np.Min != nil && np.Max != nil && *np.Min > *np.Max {
			r.errorf(i, "properties.min", "Element %d has min %s greater than max %s", i+1,
				model.Stringify(*np.Min), model.Stringify(*np.Max))
		}
	case el.Type == model.ElementCalculated:
		cp, ok := el.Calculated()
		if !ok || cp.Calculation == "" {
			r.errorf(i, "properties.calculation", "Element %d is missing a calculation type", i+1)
			return
		}
		if !cp.Calculation.Known() {
			r.warnf(i, "properties.calculation", "Element %d has unknown calculation type %q", i+1, cp.Calculation)
			return
		}
		if cp.Calculation == model.CalcCustom && strings.TrimSpace(cp.Formula) == "" {
			r.errorf(i, "properties.calculationFormula", "Element %d uses a custom calculation without a formula", i+1)
		}
	}
}

func checkPrefill(r *report, i int, el model.Element) {
	p := el.Prefill
	if p == nil || !p.Enabled {
		return
	}
	if !el.Type.HasData() || el.Type == model.ElementCalculated {
		r.errorf(i, "prefill", "Element %d (%s) cannot be prefilled", i+1, el.Type)
		return
	}
	if !prefill.ValidSource(p.Source) {
		r.errorf(i, "prefill.source", "Element %d has unknown prefill source %q", i+1, p.Source)
		return
	}
	if !prefill.ValidField(p.Source, p.Field) {
		r.errorf(i, "prefill.field", "Element %d prefill field %q is not available from %s", i+1, p.Field, p.Source)
	}
}

func checkValidation(r *report, i int, el model.Element) {
	v := el.Validation
	if v == nil {
		return
	}
	if v.Pattern != "" {
		if _, err := regexp.Compile(v.Pattern); err != nil {
			r.errorf(i, "validation.pattern", "Element %d has an invalid pattern: %v", i+1, err)
		}
	}
	if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
		r.errorf(i, "validation.minLength", "Element %d has minLength %d greater than maxLength %d", i+1, *v.MinLength, *v.MaxLength)
	}
}

// checkCalculationInputs warns when a built-in calculation has no field it
// could read from.
func checkCalculationInputs(r *report, s model.Schema) {
	names := s.Names()
	for i, el := range s.Elements {
		cp, ok := el.Calculated()
		if !ok {
			continue
		}
		switch cp.Calculation {
		case model.CalcBMI:
			if !anyMatch(names, calc.WeightFields) || !anyMatch(names, calc.HeightFields) {
				r.warnf(i, "properties.calculation", "Element %d calculates BMI but the form has no weight and height fields", i+1)
			}
		case model.CalcAge, model.CalcAgeMonths:
			if !anyMatch(names, birthHints) {
				r.warnf(i, "properties.calculation", "Element %d calculates age but the form has no date of birth field", i+1)
			}
		case model.CalcCustom:
			for _, f := range calc.FormulaFields(cp.Formula) {
				if _, ok := s.ByName(f); !ok {
					r.warnf(i, "properties.calculationFormula", "Element %d formula references unknown field %q", i+1, f)
				}
			}
		}
	}
}

var birthHints = []string{"dob", "birth"}

// anyMatch mirrors the calculator's lookup: exact candidate names, then
// substring matches for candidates of three or more characters.
func anyMatch(names, candidates []string) bool {
	for _, n := range names {
		for _, c := range candidates {
			if n == c || (len(c) >= 3 && strings.Contains(n, c)) {
				return true
			}
		}
	}
	return false
}
