package summarizetext

import (
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string", "minLength": 1, "maxLength": 2000}
	}
}`)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	o.Summary = strings.TrimSpace(o.Summary)
	if o.Summary == "" {
		return validation.Semantic(TaskType, "summary", "summary is blank")
	}
	return nil
})

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
