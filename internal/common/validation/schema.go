package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SchemaError is returned when a document fails its schema or semantic check.
type SchemaError struct {
	Schema string
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", ve.Field, ve.Message))
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(parts, "; "))
}

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal. Schemas are package-level values, so
// a broken one is a programming error and panics at init.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("validation: schema %s does not compile: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

func (s *Schema) Name() string { return s.name }

// Validate checks a decoded JSON value (maps, slices, float64...) or any Go
// value that marshals to JSON.
func (s *Schema) Validate(doc interface{}) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "UNREADABLE_DOCUMENT",
			}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   errorField(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

// errorField names the missing property for "required" errors, which
// gojsonschema reports against the parent object.
func errorField(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() != "required" {
		return field
	}
	prop, _ := re.Details()["property"].(string)
	if prop == "" {
		return field
	}
	if field == "(root)" {
		return prop
	}
	return field + "." + prop
}

// Check is Validate returning an error.
func (s *Schema) Check(doc interface{}) error {
	res := s.Validate(doc)
	if res.Valid {
		return nil
	}
	return &SchemaError{Schema: s.name, Errors: res.Errors}
}

// Typed returns a validator that runs the schema, decodes the document into
// T and then applies check, if any. check sees a fully populated T and may
// normalise it in place.
func Typed[T any](s *Schema, check func(*T) error) func(interface{}) (T, error) {
	return func(doc interface{}) (T, error) {
		var out T
		if err := s.Check(doc); err != nil {
			return out, err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return out, fmt.Errorf("schema %s: re-encode: %w", s.name, err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, &SchemaError{Schema: s.name, Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "DECODE_FAILED",
			}}}
		}
		if check != nil {
			if err := check(&out); err != nil {
				return out, err
			}
		}
		return out, nil
	}
}

// Decode validates raw JSON bytes with a Typed validator.
func Decode[T any](validate func(interface{}) (T, error), raw []byte) (T, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		var zero T
		return zero, fmt.Errorf("decode: %w", err)
	}
	return validate(doc)
}

// Semantic builds a single-field SchemaError for checks JSON schema cannot express.
func Semantic(schema, field, message string) error {
	return &SchemaError{Schema: schema, Errors: []ValidationError{{
		Field:   field,
		Message: message,
		Code:    "SEMANTIC",
	}}}
}
