// Package genai adapts the hosted generative model to a small text-in,
// text-out interface. It performs exactly one upstream call per method call;
// retries belong to the structured generation engine.
package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	commonhttp "vibe-workers/internal/common/http"
	"vibe-workers/internal/common/logger"
)

// Client is the generative model client used by the engine.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateMultimodal(ctx context.Context, prompt string, images []ImageInput) (string, error)
	Model() string
}

// ImageInput is one inline image. Base64Data may carry a data URI prefix.
type ImageInput struct {
	Base64Data string `json:"base64Data"`
	MimeType   string `json:"mimeType"`
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// AllowedMimeType reports whether the upstream accepts images of this type.
func AllowedMimeType(mime string) bool {
	return allowedMimeTypes[strings.ToLower(strings.TrimSpace(mime))]
}

// Normalize strips a data URI prefix, fills MimeType from it when missing and
// checks the result against the MIME allow-list.
func (img ImageInput) Normalize() (ImageInput, error) {
	data := strings.TrimSpace(img.Base64Data)
	mime := strings.ToLower(strings.TrimSpace(img.MimeType))

	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return ImageInput{}, fmt.Errorf("malformed data URI")
		}
		if mime == "" {
			mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		data = payload
	}

	if data == "" {
		return ImageInput{}, fmt.Errorf("image data is empty")
	}
	if !AllowedMimeType(mime) {
		return ImageInput{}, fmt.Errorf("unsupported image mime type %q", mime)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return ImageInput{}, fmt.Errorf("image data is not valid base64: %w", err)
	}
	return ImageInput{Base64Data: data, MimeType: mime}, nil
}

// Config fixes the model parameters at setup.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// NewClient returns the REST-backed client. A nil httpClient gets one sized
// from cfg.Timeout.
func NewClient(cfg Config, httpClient *commonhttp.Client, log logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("genai: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = commonhttp.NewClient(cfg.Timeout)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &restClient{
		cfg:  cfg,
		http: httpClient,
		log:  log.WithFields(map[string]interface{}{"component": "genai", "model": cfg.Model}),
	}, nil
}

// WithModel returns a sibling of base bound to model. Clients it does not
// know how to clone are returned unchanged.
func WithModel(base Client, model string) Client {
	model = strings.TrimSpace(model)
	if base == nil || model == "" || base.Model() == model {
		return base
	}
	if c, ok := base.(*restClient); ok {
		return c.cloneWithModel(model)
	}
	if m, ok := base.(interface{ WithModel(string) Client }); ok {
		return m.WithModel(model)
	}
	return base
}
