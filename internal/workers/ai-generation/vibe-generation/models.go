package vibegeneration

import "vibe-workers/internal/common/generation"

type Input struct {
	UserID    string         `json:"userId"`
	Name      string         `json:"name,omitempty"`
	Bio       string         `json:"bio"`
	Interests []string       `json:"interests"`
	Prompts   []PromptAnswer `json:"prompts,omitempty"`
	Photos    []Photo        `json:"photos,omitempty"`
}

// PromptAnswer is one answered profile prompt.
type PromptAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Photo is a base64 image, optionally as a data URI.
type Photo struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
}

type Output struct {
	Headline             string   `json:"headline"`
	Vibe                 string   `json:"vibe"`
	Traits               []string `json:"traits"`
	ConversationStarters []string `json:"conversationStarters"`
}

type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
