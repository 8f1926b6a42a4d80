package compatibility

import "vibe-workers/internal/common/generation"

type Input struct {
	UserA Profile `json:"userA"`
	UserB Profile `json:"userB"`
}

type Profile struct {
	UserID     string   `json:"userId"`
	Name       string   `json:"name,omitempty"`
	Age        int      `json:"age,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Interests  []string `json:"interests"`
	LookingFor string   `json:"lookingFor,omitempty"`
}

type Output struct {
	Score           float64  `json:"score"`
	Narrative       string   `json:"narrative"`
	SharedInterests []string `json:"sharedInterests"`
}

type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
