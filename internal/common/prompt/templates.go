package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Template keys. They double as Zeebe task types for the matching workers.
const (
	SummarizeText        = "summarize-text"
	VibeGeneration       = "vibe-generation"
	Compatibility        = "compatibility"
	PracticeConversation = "practice-conversation"
	PhotoVerification    = "photo-verification"
	ConversationFeedback = "conversation-feedback"
)

var ErrTemplateNotFound = errors.New("TEMPLATE_NOT_FOUND")

const jsonOnly = "Return JSON only, with no prose and no markdown"

// Args are the caller-supplied dynamic fields of a template.
type Args map[string]any

// Template binds fixed role/task/rules text to a renderer.
type Template struct {
	Name   string
	Task   string
	render func(Args) string
}

// Render renders the template with args.
func (t Template) Render(args Args) string {
	if args == nil {
		args = Args{}
	}
	return t.render(args)
}

// structured builds a template whose prompt is a plain Format call with the
// args as the input payload.
func structured(name, role, task string, rules []string, output any) Template {
	return Template{
		Name: name,
		Task: task,
		render: func(args Args) string {
			return Format(Spec{
				Role:   role,
				Task:   task,
				Rules:  rules,
				Input:  map[string]any(args),
				Output: output,
			})
		},
	}
}

var registry = map[string]Template{
	SummarizeText: structured(
		SummarizeText,
		"Expert summarizer",
		"Summarize the provided text into a short, faithful summary",
		[]string{
			jsonOnly,
			"Keep the summary under 3 sentences",
			"Do not add information that is not in the text",
		},
		map[string]any{"summary": "string"},
	),
	VibeGeneration: structured(
		VibeGeneration,
		"Dating profile copywriter with a warm, playful voice",
		"Generate a vibe profile that captures the user's personality",
		[]string{
			jsonOnly,
			"Keep the headline under 60 characters",
			"Provide between 3 and 6 traits, each one or two words",
			"Provide between 1 and 5 conversation starters grounded in the user's interests",
			"Never comment on physical attractiveness, body or ethnicity",
			"If photos are attached, use them only to read the overall mood and setting",
		},
		map[string]any{
			"headline":             "string",
			"vibe":                 "string",
			"traits":               []string{"string"},
			"conversationStarters": []string{"string"},
		},
	),
	Compatibility: structured(
		Compatibility,
		"Relationship compatibility analyst",
		"Assess how compatible the two users are and explain why",
		[]string{
			jsonOnly,
			"score is a number between 0 and 1",
			"The narrative addresses both users and stays under 80 words",
			"List only interests that appear for both users in sharedInterests",
		},
		map[string]any{
			"score":           "number (0-1)",
			"narrative":       "string",
			"sharedInterests": []string{"string"},
		},
	),
	PracticeConversation: {
		Name:   PracticeConversation,
		Task:   practiceTask,
		render: renderPractice,
	},
	PhotoVerification: structured(
		PhotoVerification,
		"Identity verification assistant for a dating app",
		"Decide whether the first image (a live selfie) shows the same person as the remaining profile photos",
		[]string{
			jsonOnly,
			"confidence is a number between 0 and 1",
			"Set verified to false when any image is unclear, edited, or shows more than one face",
			"Keep the reason to one neutral sentence without describing appearance",
		},
		map[string]any{
			"verified":   "boolean",
			"confidence": "number (0-1)",
			"reason":     "string",
		},
	),
	ConversationFeedback: structured(
		ConversationFeedback,
		"Supportive dating conversation coach",
		"Give feedback on the user's messages in the practice conversation",
		[]string{
			jsonOnly,
			"overallScore is an integer between 0 and 10",
			"Give between 1 and 3 strengths and between 1 and 3 improvements",
			"Only judge messages sent by the user",
		},
		map[string]any{
			"overallScore": "integer (0-10)",
			"strengths":    []string{"string"},
			"improvements": []string{"string"},
		},
	),
}

const practiceTask = "Reply in character as the user's match in a practice conversation"

// renderPractice is free-form: it keeps the Role/Task/Rules/Input/Output order
// but inserts the scenario and transcript as plain text before the input.
func renderPractice(args Args) string {
	persona := stringArg(args, "persona")
	if persona == "" {
		persona = "a friendly match on a dating app"
	}

	var b strings.Builder
	b.WriteString(headingRole + "You are " + persona + "\n")
	b.WriteString(headingTask + practiceTask + "\n")

	b.WriteString("\n" + headingRules + "\n")
	writeBullets(&b, []string{
		jsonOnly,
		"Stay in character and keep the reply under 3 sentences",
		"tip is one short coaching hint for the user, or an empty string",
		"Never ask for contact details, money or personal identifiers",
	})

	if scenario := stringArg(args, "scenario"); scenario != "" {
		b.WriteString("\nScenario: " + scenario + "\n")
	}

	b.WriteString("\nConversation so far:\n")
	history := turnsArg(args, "history")
	if len(history) == 0 {
		b.WriteString("(no messages yet)\n")
	}
	for _, turn := range history {
		b.WriteString(fmt.Sprintf("%s: %s\n", turn.Speaker, turn.Text))
	}

	b.WriteString("\n" + headingInput + "\n")
	b.WriteString(mustPrettyJSON("input", map[string]any{"message": stringArg(args, "message")}) + "\n")

	b.WriteString("\n" + headingOutput + "\n")
	b.WriteString(mustPrettyJSON("output", map[string]any{"reply": "string", "tip": "string"}))

	return b.String()
}

// Turn is one line of a practice conversation transcript.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// turnsArg accepts []Turn from Go callers and the decoded []any shape that
// JSON-sourced args (the registry CLI) produce.
func turnsArg(args Args, key string) []Turn {
	switch v := args[key].(type) {
	case []Turn:
		return v
	case nil:
		return nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var turns []Turn
		if err := json.Unmarshal(data, &turns); err != nil {
			return nil
		}
		return turns
	}
}

func stringArg(args Args, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// Names lists every registered template key in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the template registered under name.
func Lookup(name string) (Template, bool) {
	t, ok := registry[name]
	return t, ok
}

// Render renders the named template.
func Render(name string, args Args) (string, error) {
	t, ok := registry[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t.Render(args), nil
}
