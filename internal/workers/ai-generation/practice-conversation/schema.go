package practiceconversation

import (
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["reply", "tip"],
	"properties": {
		"reply": {"type": "string", "minLength": 1, "maxLength": 1000},
		"tip": {"type": "string", "maxLength": 300}
	}
}`)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	o.Reply = strings.TrimSpace(o.Reply)
	o.Tip = strings.TrimSpace(o.Tip)
	if o.Reply == "" {
		return validation.Semantic(TaskType, "reply", "reply is blank")
	}
	return nil
})

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
