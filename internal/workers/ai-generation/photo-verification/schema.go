package photoverification

import (
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["verified", "confidence", "reason"],
	"properties": {
		"verified": {"type": "boolean"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reason": {"type": "string", "minLength": 1, "maxLength": 500}
	}
}`)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	o.Reason = strings.TrimSpace(o.Reason)
	if o.Reason == "" {
		return validation.Semantic(TaskType, "reason", "reason is blank")
	}
	return nil
})

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
