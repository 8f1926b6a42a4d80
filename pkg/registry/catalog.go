package registry

import (
	"sort"
	"time"

	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/prompt"
)

const Version = "1.0.0"

var generationErrors = []string{
	"INVALID_INPUT",
	"TEMPLATE_NOT_FOUND",
	"GENERATION_EXHAUSTED",
	"GENERATION_TRANSPORT",
	"INTERNAL_ERROR",
}

var useCases = []UseCase{
	{
		ID:          prompt.SummarizeText,
		DisplayName: "Summarize Text",
		Description: "Condenses free text into a short summary",
		Category:    "content",
		Route:       "/api/ai/summarize",
		Cached:      true,
		Tags:        []string{"text"},
	},
	{
		ID:          prompt.VibeGeneration,
		DisplayName: "Vibe Generation",
		Description: "Writes a profile headline, vibe, traits and openers from bio, prompts and photos",
		Category:    "profile",
		Route:       "/api/ai/vibe",
		Multimodal:  true,
		Cached:      true,
		Tags:        []string{"profile", "images"},
	},
	{
		ID:          prompt.Compatibility,
		DisplayName: "Compatibility",
		Description: "Scores two profiles and explains what they share",
		Category:    "matching",
		Route:       "/api/ai/compatibility",
		Cached:      true,
		Tags:        []string{"profile", "pair"},
	},
	{
		ID:          prompt.PracticeConversation,
		DisplayName: "Practice Conversation",
		Description: "Plays a persona in a practice chat and gives a coaching tip",
		Category:    "coaching",
		Route:       "/api/ai/practice",
		Tags:        []string{"chat"},
	},
	{
		ID:          prompt.PhotoVerification,
		DisplayName: "Photo Verification",
		Description: "Checks that a live selfie shows the person in the profile photos",
		Category:    "trust",
		Route:       "/api/ai/verify-photo",
		Multimodal:  true,
		Tags:        []string{"images", "safety"},
	},
	{
		ID:          prompt.ConversationFeedback,
		DisplayName: "Conversation Feedback",
		Description: "Scores the user's side of a chat transcript with strengths and improvements",
		Category:    "coaching",
		Route:       "/api/ai/feedback",
		Cached:      true,
		Tags:        []string{"chat"},
	},
}

// Catalog describes every generation use case. Template and fallback flags
// are read from the live registries.
func Catalog() *UseCaseRegistry {
	out := make([]UseCase, 0, len(useCases))
	for _, uc := range useCases {
		uc.TaskType = uc.ID
		if _, ok := prompt.Lookup(uc.ID); ok {
			uc.Template = uc.ID
		}
		uc.HasFallback = fallback.Has(uc.ID)
		uc.ErrorCodes = append([]string(nil), generationErrors...)
		uc.Tags = append([]string(nil), uc.Tags...)
		out = append(out, uc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return &UseCaseRegistry{
		Version:     Version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		UseCases:    out,
	}
}
