// Package calc derives calculated field values from form data. Nothing here
// returns an error: insufficient or unsafe input degrades to a readable
// placeholder string.
package calc

import (
	"encoding/json"
	"time"

	"clinicdocs/internal/model"

	"github.com/shopspring/decimal"
)

// Placeholder strings shown in place of a value
const (
	MsgEnterWeightHeight   = "Enter weight and height"
	MsgInvalidWeightHeight = "Invalid weight or height"
	MsgEnterDOB            = "Enter date of birth"
	MsgInvalidDOB          = "Invalid date of birth"
	MsgFutureDOB           = "Date of birth is in the future"
	MsgEnterDates          = "Enter start and end dates"
	MsgInvalidDate         = "Invalid date"
	MsgNoFormula           = "No formula defined"
	MsgInvalidFormula      = "Invalid formula"
	MsgCalculationError    = "Calculation error"
	MsgUnknownCalculation  = "Unknown calculation type"
)

// Result is either a number or a descriptive string
type Result struct {
	Number   float64
	Text     string
	IsNumber bool
}

// Num wraps a numeric result
func Num(f float64) Result {
	return Result{Number: f, IsNumber: true}
}

// Msg wraps a placeholder result
func Msg(s string) Result {
	return Result{Text: s}
}

// Value returns the result as a form value (float64 or string)
func (r Result) Value() any {
	if r.IsNumber {
		return r.Number
	}
	return r.Text
}

// String renders the result for display
func (r Result) String() string {
	return model.Stringify(r.Value())
}

// MarshalJSON encodes numbers as JSON numbers and placeholders as strings
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// Calculator evaluates calculations against an injectable clock
type Calculator struct {
	now func() time.Time
}

// New creates a calculator; a nil clock means time.Now
func New(now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{now: now}
}

var defaultCalculator = New(nil)

// Execute runs a calculation with the wall clock
func Execute(t model.CalculationType, data model.FormData, formula string) Result {
	return defaultCalculator.Execute(t, data, formula)
}

// Execute runs calculation t over data. formula is only used for custom.
func (c *Calculator) Execute(t model.CalculationType, data model.FormData, formula string) Result {
	if data == nil {
		data = model.FormData{}
	}
	switch t {
	case model.CalcBMI:
		return BMI(data)
	case model.CalcAge:
		return c.age(data, false)
	case model.CalcAgeMonths:
		return c.age(data, true)
	case model.CalcDaysBetween:
		return DaysBetween(data)
	case model.CalcCustom:
		return EvaluateFormula(formula, data)
	}
	return Msg(MsgUnknownCalculation)
}

// ComputeAll evaluates every calculated element of s in schema order. Each
// result is visible to formulas of later calculated elements.
func (c *Calculator) ComputeAll(s model.Schema, values model.FormData) map[string]Result {
	working := values.Clone()
	out := make(map[string]Result)
	for _, el := range s.Elements {
		props, ok := el.Calculated()
		if !ok || el.Name == "" {
			continue
		}
		r := c.Execute(props.Calculation, working, props.Formula)
		out[el.Name] = r
		if r.IsNumber {
			working[el.Name] = r.Number
		} else {
			delete(working, el.Name)
		}
	}
	return out
}

func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}
