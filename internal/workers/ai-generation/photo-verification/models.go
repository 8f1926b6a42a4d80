package photoverification

import "vibe-workers/internal/common/generation"

type Input struct {
	UserID        string  `json:"userId,omitempty"`
	Selfie        Photo   `json:"selfie"`
	ProfilePhotos []Photo `json:"profilePhotos"`
}

// Photo is a base64 image, optionally as a data URI.
type Photo struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
}

type Output struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type JobOutput struct {
	Output
	GenerationMeta generation.Meta `json:"generationMeta"`
}
