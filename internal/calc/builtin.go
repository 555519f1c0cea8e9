package calc

import (
	"math"
	"sort"
	"strings"
	"time"

	"clinicdocs/internal/model"
)

// Candidate field names per logical quantity, in priority order. Names of
// three letters or more also match as substrings of a field name.
var (
	WeightFields    = []string{"weight", "weight_kg", "wt", "body_weight"}
	HeightFields    = []string{"height", "height_cm", "ht", "body_height"}
	BirthDateFields = []string{"date_of_birth", "dob", "birth_date", "birthdate", "patient_dob", "patient_date_of_birth"}
	StartDateFields = []string{"start_date", "from_date", "admission_date"}
	EndDateFields   = []string{"end_date", "to_date", "discharge_date"}
)

const minSubstringMatch = 3

// findField returns the first non-empty field matching candidates. Exact
// matches win over substring matches.
func findField(data model.FormData, candidates []string) (string, bool) {
	for _, c := range candidates {
		if !model.IsEmpty(data[c]) {
			return c, true
		}
	}

	keys := make([]string, 0, len(data))
	for k, v := range data {
		if !model.IsEmpty(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, c := range candidates {
		if len(c) < minSubstringMatch {
			continue
		}
		for _, k := range keys {
			if strings.Contains(strings.ToLower(k), c) {
				return k, true
			}
		}
	}
	return "", false
}

// BMI computes weight (kg) / height (m)² from a height in centimetres
func BMI(data model.FormData) Result {
	wKey, okW := findField(data, WeightFields)
	hKey, okH := findField(data, HeightFields)
	if !okW || !okH {
		return Msg(MsgEnterWeightHeight)
	}

	weight, _, okW := data.Number(wKey)
	height, _, okH := data.Number(hKey)
	if !okW || !okH {
		return Msg(MsgEnterWeightHeight)
	}
	if weight <= 0 || height <= 0 {
		return Msg(MsgInvalidWeightHeight)
	}

	m := height / 100
	bmi := weight / (m * m)
	if math.IsNaN(bmi) || math.IsInf(bmi, 0) {
		return Msg(MsgCalculationError)
	}
	return Num(round(bmi, 1))
}

// BMI category bands
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// BMICategory maps a BMI value to its band
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	}
	return BMIObese
}

func (c *Calculator) age(data model.FormData, months bool) Result {
	key, ok := findField(data, BirthDateFields)
	if !ok {
		return Msg(MsgEnterDOB)
	}
	dob, ok := ParseDate(data.Text(key))
	if !ok {
		return Msg(MsgInvalidDOB)
	}

	today := c.now()
	if months {
		m, ok := AgeInMonths(dob, today)
		if !ok {
			return Msg(MsgFutureDOB)
		}
		return Num(float64(m))
	}
	y, ok := AgeInYears(dob, today)
	if !ok {
		return Msg(MsgFutureDOB)
	}
	return Num(float64(y))
}

// AgeInYears returns completed years between dob and today. ok is false
// when dob lies after today.
func AgeInYears(dob, today time.Time) (int, bool) {
	ty, tm, td := today.Date()
	by, bm, bd := dob.Date()
	if dateAfter(by, bm, bd, ty, tm, td) {
		return 0, false
	}
	years := ty - by
	if tm < bm || (tm == bm && td < bd) {
		years--
	}
	return years, true
}

// AgeInMonths returns completed months between dob and today
func AgeInMonths(dob, today time.Time) (int, bool) {
	ty, tm, td := today.Date()
	by, bm, bd := dob.Date()
	if dateAfter(by, bm, bd, ty, tm, td) {
		return 0, false
	}
	months := (ty-by)*12 + int(tm) - int(bm)
	if td < bd {
		months--
	}
	return months, true
}

func dateAfter(y1 int, m1 time.Month, d1 int, y2 int, m2 time.Month, d2 int) bool {
	if y1 != y2 {
		return y1 > y2
	}
	if m1 != m2 {
		return m1 > m2
	}
	return d1 > d2
}

// DaysBetween returns the absolute whole-day difference between the start
// and end date fields.
func DaysBetween(data model.FormData) Result {
	sKey, okS := findField(data, StartDateFields)
	eKey, okE := findField(data, EndDateFields)
	if !okS || !okE {
		return Msg(MsgEnterDates)
	}

	start, okS := ParseDate(data.Text(sKey))
	end, okE := ParseDate(data.Text(eKey))
	if !okS || !okE {
		return Msg(MsgInvalidDate)
	}

	// both dates are midnight UTC
	days := (end.Unix() - start.Unix()) / 86400
	if days < 0 {
		days = -days
	}
	return Num(float64(days))
}

// ParseDate reads a YYYY-MM-DD date, tolerating a trailing time part. The
// result is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
