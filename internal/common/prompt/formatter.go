// Package prompt renders the structured prompts sent to the generative model.
//
// Section order and heading text are a contract: prompt tuning downstream
// depends on them, so they only change together with the templates.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	headingRole   = "Role: "
	headingTask   = "Task: "
	headingRules  = "Rules:"
	headingInput  = "Input (JSON):"
	headingOutput = "Output (JSON):"
)

// Spec describes one prompt. It is built per call and never mutated.
type Spec struct {
	Role   string
	Task   string
	Rules  []string
	Input  any
	Output any
}

// Format renders spec into prompt text. It is pure: the same Spec always
// yields the same bytes (encoding/json sorts map keys).
//
// An empty role or task, or an Input/Output that cannot be marshalled, is a
// programming error and panics.
func Format(spec Spec) string {
	if strings.TrimSpace(spec.Role) == "" || strings.TrimSpace(spec.Task) == "" {
		panic("prompt: role and task must be non-empty")
	}

	var b strings.Builder
	b.WriteString(headingRole + spec.Role + "\n")
	b.WriteString(headingTask + spec.Task + "\n")

	if len(spec.Rules) > 0 {
		b.WriteString("\n" + headingRules + "\n")
		writeBullets(&b, spec.Rules)
	}

	b.WriteString("\n" + headingInput + "\n")
	b.WriteString(mustPrettyJSON("input", spec.Input) + "\n")

	b.WriteString("\n" + headingOutput + "\n")
	b.WriteString(mustPrettyJSON("output", spec.Output))

	return b.String()
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}

// mustPrettyJSON keeps <, > and & literal; user text reaches the model as typed.
func mustPrettyJSON(section string, v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(fmt.Sprintf("prompt: %s is not JSON-serializable: %v", section, err))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
