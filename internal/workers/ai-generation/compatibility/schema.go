package compatibility

import (
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["score", "narrative", "sharedInterests"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 1},
		"narrative": {"type": "string", "minLength": 1, "maxLength": 1000},
		"sharedInterests": {
			"type": "array",
			"maxItems": 20,
			"items": {"type": "string"}
		}
	}
}`)

// validatorFor checks the schema and then keeps only shared interests that
// really appear in both profiles, using the first profile's spelling.
func validatorFor(a, b Profile) func(interface{}) (Output, error) {
	common := sharedInterests(a.Interests, b.Interests)

	return validation.Typed[Output](outputSchema, func(o *Output) error {
		o.Narrative = strings.TrimSpace(o.Narrative)
		if o.Narrative == "" {
			return validation.Semantic(TaskType, "narrative", "narrative is blank")
		}

		kept := make([]string, 0, len(o.SharedInterests))
		seen := make(map[string]bool, len(o.SharedInterests))
		for _, interest := range o.SharedInterests {
			key := normalizeInterest(interest)
			canonical, ok := common[key]
			if !ok || seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, canonical)
		}
		o.SharedInterests = kept
		return nil
	})
}

func sharedInterests(a, b []string) map[string]string {
	inB := make(map[string]bool, len(b))
	for _, interest := range b {
		inB[normalizeInterest(interest)] = true
	}
	out := make(map[string]string)
	for _, interest := range a {
		key := normalizeInterest(interest)
		if key != "" && inB[key] {
			out[key] = strings.TrimSpace(interest)
		}
	}
	return out
}

func normalizeInterest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckOutput validates doc without profile context. Shared interests are
// dropped rather than rejected, as they are for live output.
func CheckOutput(doc interface{}) error {
	_, err := validatorFor(Profile{}, Profile{})(doc)
	return err
}
