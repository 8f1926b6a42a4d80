package conversationfeedback

import (
	"fmt"
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["overallScore", "strengths", "improvements"],
	"properties": {
		"overallScore": {"type": "integer", "minimum": 0, "maximum": 10},
		"strengths": {
			"type": "array",
			"minItems": 1,
			"maxItems": 3,
			"items": {"type": "string", "minLength": 1, "maxLength": 300}
		},
		"improvements": {
			"type": "array",
			"minItems": 1,
			"maxItems": 3,
			"items": {"type": "string", "minLength": 1, "maxLength": 300}
		}
	}
}`)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	if err := trimAll(o.Strengths, "strengths"); err != nil {
		return err
	}
	return trimAll(o.Improvements, "improvements")
})

func trimAll(items []string, field string) error {
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
		if items[i] == "" {
			return validation.Semantic(TaskType, fmt.Sprintf("%s.%d", field, i), "entry is blank")
		}
	}
	return nil
}

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
