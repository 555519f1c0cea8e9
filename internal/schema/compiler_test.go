package schema

import (
	"context"
	"testing"

	"clinicdocs/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestCompiler_Prepare(t *testing.T) {
	compiler := NewCompilerWithCache(64)
	ctx := context.Background()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}

	first, err := compiler.Prepare(ctx, schema)
	require.NoError(t, err)

	second, err := compiler.Prepare(ctx, schema)
	require.NoError(t, err)
	assert.Same(t, first, second, "second prepare is served from the cache")
}

func TestCompiler_Validate(t *testing.T) {
	compiler := NewCompilerWithCache(64)
	ctx := context.Background()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}

	err := compiler.Validate(ctx, schema, map[string]any{"name": "test"})
	assert.NoError(t, err)

	err = compiler.Validate(ctx, schema, map[string]any{})
	assert.Error(t, err)
}

func testSchema() model.Schema {
	return model.Schema{Version: 2, Elements: []model.Element{
		{ID: "1", Type: model.ElementNumber, Label: "Weight", Name: "weight",
			Properties: &model.NumberProps{Min: floatPtr(1), Max: floatPtr(400)}},
		{ID: "2", Type: model.ElementText, Label: "Code", Name: "code",
			Properties: &model.TextProps{},
			Validation: &model.ValidationConfig{MinLength: intPtr(2), MaxLength: intPtr(4), Pattern: "^[A-Z]+$"}},
		{ID: "3", Type: model.ElementDropdown, Label: "Sex", Name: "sex",
			Properties: &model.ChoiceProps{Options: []string{"Male", "Female"}}},
		{ID: "4", Type: model.ElementText, Label: "Ref", Name: "ref",
			Properties: &model.TextProps{},
			Validation: &model.ValidationConfig{Pattern: "^R[0-9]+$", Message: "Use R followed by digits"}},
		{ID: "5", Type: model.ElementDate, Label: "Visit", Name: "visit",
			Properties: &model.DateProps{}},
		{ID: "6", Type: model.ElementCalculated, Label: "BMI", Name: "bmi",
			Properties: &model.CalculatedProps{Calculation: model.CalcBMI}},
		{ID: "7", Type: model.ElementDivider, Properties: &model.DividerProps{}},
	}}
}

func TestCheckValues_Valid(t *testing.T) {
	compiler := NewCompilerWithCache(8)

	violations, err := compiler.CheckValues(context.Background(), testSchema(), model.FormData{
		"weight": 72.5,
		"code":   "AB",
		"sex":    "Female",
		"ref":    "R12",
		"visit":  "2024-06-14",
		"bmi":    "Enter weight and height",
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckValues_EmptyValuesAreSkipped(t *testing.T) {
	compiler := NewCompilerWithCache(8)

	violations, err := compiler.CheckValues(context.Background(), testSchema(), model.FormData{
		"weight": nil,
		"code":   "",
		"sex":    "  ",
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckValues_Violations(t *testing.T) {
	compiler := NewCompilerWithCache(8)

	violations, err := compiler.CheckValues(context.Background(), testSchema(), model.FormData{
		"weight": 900.0,
		"code":   "abcdef",
		"sex":    "Other",
		"ref":    "X1",
		"visit":  "14/06/2024",
	})
	require.NoError(t, err)

	fields := make([]string, len(violations))
	for i, v := range violations {
		fields[i] = v.Field
		assert.NotEmpty(t, v.Message)
	}
	assert.Equal(t, []string{"weight", "code", "sex", "ref", "visit"}, fields)
	assert.Equal(t, "Use R followed by digits", violations[3].Message)
}

func TestFieldSchema(t *testing.T) {
	s := testSchema()

	assert.Equal(t, map[string]any{"type": "number", "minimum": 1.0, "maximum": 400.0}, FieldSchema(s.Elements[0]))
	assert.Nil(t, FieldSchema(s.Elements[5]))
	assert.Nil(t, FieldSchema(s.Elements[6]))

	form := FormSchema(s)
	props := form["properties"].(map[string]any)
	assert.Len(t, props, 5)
}
