package conversationfeedback

import (
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/prompt"
)

type Input struct {
	Transcript []prompt.Turn `json:"transcript"`
	// UserSpeaker names the speaker whose messages are judged. Defaults to "user".
	UserSpeaker string `json:"userSpeaker,omitempty"`
}

type Output struct {
	OverallScore int      `json:"overallScore"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
