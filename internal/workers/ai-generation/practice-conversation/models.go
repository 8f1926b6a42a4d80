package practiceconversation

import (
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/prompt"
)

type Input struct {
	Persona  string        `json:"persona,omitempty"`
	Scenario string        `json:"scenario,omitempty"`
	History  []prompt.Turn `json:"history,omitempty"`
	Message  string        `json:"message"`
}

type Output struct {
	Reply string `json:"reply"`
	Tip   string `json:"tip"`
}

type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
