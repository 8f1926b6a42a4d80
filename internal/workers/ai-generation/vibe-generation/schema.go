package vibegeneration

import (
	"fmt"
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["headline", "vibe", "traits", "conversationStarters"],
	"properties": {
		"headline": {"type": "string", "minLength": 1, "maxLength": 80},
		"vibe": {"type": "string", "minLength": 1, "maxLength": 600},
		"traits": {
			"type": "array",
			"minItems": 3,
			"maxItems": 6,
			"items": {"type": "string", "minLength": 1, "maxLength": 40}
		},
		"conversationStarters": {
			"type": "array",
			"minItems": 1,
			"maxItems": 5,
			"items": {"type": "string", "minLength": 1, "maxLength": 200}
		}
	}
}`)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	o.Headline = strings.TrimSpace(o.Headline)
	o.Vibe = strings.TrimSpace(o.Vibe)
	if o.Headline == "" {
		return validation.Semantic(TaskType, "headline", "headline is blank")
	}
	if o.Vibe == "" {
		return validation.Semantic(TaskType, "vibe", "vibe is blank")
	}

	seen := make(map[string]bool, len(o.Traits))
	for i, trait := range o.Traits {
		trait = strings.TrimSpace(trait)
		key := strings.ToLower(trait)
		if trait == "" {
			return validation.Semantic(TaskType, fmt.Sprintf("traits.%d", i), "trait is blank")
		}
		if seen[key] {
			return validation.Semantic(TaskType, fmt.Sprintf("traits.%d", i), "duplicate trait")
		}
		seen[key] = true
		o.Traits[i] = trait
	}
	for i, starter := range o.ConversationStarters {
		starter = strings.TrimSpace(starter)
		if starter == "" {
			return validation.Semantic(TaskType, fmt.Sprintf("conversationStarters.%d", i), "starter is blank")
		}
		o.ConversationStarters[i] = starter
	}
	return nil
})

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
