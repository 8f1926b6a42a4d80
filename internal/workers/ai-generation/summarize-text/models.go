package summarizetext

import "vibe-workers/internal/common/generation"

type Input struct {
	Text string `json:"text"`
}

type Output struct {
	Summary string `json:"summary"`
}

// JobOutput is what the worker writes back to the process instance.
type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
