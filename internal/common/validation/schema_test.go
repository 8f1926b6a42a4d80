package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = MustCompile("test-score", `{
	"type": "object",
	"required": ["score", "tags"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 1},
		"tags": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1}
	}
}`)

type scored struct {
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name  string
		doc   interface{}
		valid bool
		field string
		code  string
	}{
		{"valid", map[string]interface{}{"score": 0.4, "tags": []interface{}{"a"}}, true, "", ""},
		{"missing tags", map[string]interface{}{"score": 0.4}, false, "tags", "REQUIRED"},
		{"score too high", map[string]interface{}{"score": 1.5, "tags": []interface{}{"a"}}, false, "score", "NUMBER_LTE"},
		{"wrong type", map[string]interface{}{"score": "high", "tags": []interface{}{"a"}}, false, "score", "INVALID_TYPE"},
		{"empty tag", map[string]interface{}{"score": 0.1, "tags": []interface{}{""}}, false, "tags.0", "STRING_GTE"},
		{"not an object", []interface{}{1, 2}, false, "(root)", "INVALID_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testSchema.Validate(tt.doc)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors, ValidationError{
				Field:   tt.field,
				Message: messageFor(res.Errors, tt.field, tt.code),
				Code:    tt.code,
			})
		})
	}
}

func messageFor(errs []ValidationError, field, code string) string {
	for _, e := range errs {
		if e.Field == field && e.Code == code {
			return e.Message
		}
	}
	return ""
}

func TestTyped(t *testing.T) {
	validate := Typed(testSchema, func(s *scored) error {
		for i, tag := range s.Tags {
			s.Tags[i] = strings.ToLower(tag)
		}
		if len(s.Tags) > 3 {
			return Semantic("test-score", "tags", "at most 3 tags")
		}
		return nil
	})

	out, err := validate(map[string]interface{}{"score": 0.9, "tags": []interface{}{"Hiking", "JAZZ"}})
	require.NoError(t, err)
	assert.Equal(t, scored{Score: 0.9, Tags: []string{"hiking", "jazz"}}, out)

	_, err = validate(map[string]interface{}{"score": 0.9, "tags": []interface{}{"a", "b", "c", "d"}})
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "SEMANTIC", se.Errors[0].Code)

	_, err = validate(map[string]interface{}{"score": -1, "tags": []interface{}{"a"}})
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "schema test-score")
}

func TestDecode(t *testing.T) {
	validate := Typed[scored](testSchema, nil)

	out, err := Decode(validate, []byte(`{"score":0,"tags":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out.Tags)

	_, err = Decode(validate, []byte(`{"score":`))
	assert.Error(t, err)
}

func TestMustCompile_PanicsOnBrokenSchema(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile("broken", `{"type": 12}`)
	})
}
