package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	commonhttp "vibe-workers/internal/common/http"
	"vibe-workers/internal/common/logger"
)

type restClient struct {
	cfg  Config
	http *commonhttp.Client
	log  logger.Logger
}

func (c *restClient) Model() string { return c.cfg.Model }

func (c *restClient) cloneWithModel(model string) *restClient {
	cp := *c
	cp.cfg.Model = model
	cp.log = c.log.WithFields(map[string]interface{}{"model": model})
	return &cp
}

// --- wire types ---

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
	"IMAGE_SAFETY":       true,
}

func (c *restClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *restClient) GenerateMultimodal(ctx context.Context, prompt string, images []ImageInput) (string, error) {
	if len(images) == 0 {
		return "", &TransportError{Kind: KindInvalidRequest, Model: c.cfg.Model, Message: "multimodal call without images"}
	}
	return c.generate(ctx, prompt, images)
}

func (c *restClient) generate(ctx context.Context, prompt string, images []ImageInput) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &TransportError{Kind: KindInvalidRequest, Model: c.cfg.Model, Message: "prompt is empty"}
	}

	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: prompt})
	for i, img := range images {
		norm, err := img.Normalize()
		if err != nil {
			return "", &TransportError{
				Kind:    KindInvalidRequest,
				Model:   c.cfg.Model,
				Message: fmt.Sprintf("image %d: %v", i, err),
				Err:     err,
			}
		}
		parts = append(parts, part{InlineData: &inlineData{MimeType: norm.MimeType, Data: norm.Base64Data}})
	}

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(c.cfg.Model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	start := time.Now()
	status, body, err := c.http.PostJSON(ctx, endpoint, headers, req)
	if err != nil {
		te := classifyDoError(ctx, c.cfg.Model, err)
		c.log.Warn("genai request failed", map[string]interface{}{
			"kind":       string(te.Kind),
			"images":     len(images),
			"durationMs": time.Since(start).Milliseconds(),
			"error":      err,
		})
		return "", te
	}

	if status < 200 || status >= 300 {
		var env errorEnvelope
		_ = json.Unmarshal(body, &env)
		msg := env.Error.Message
		if msg == "" {
			msg = truncate(string(body), 256)
		}
		te := classifyStatus(c.cfg.Model, status, env.Error.Status, msg)
		c.log.Warn("genai returned error status", map[string]interface{}{
			"kind":       string(te.Kind),
			"status":     status,
			"durationMs": time.Since(start).Milliseconds(),
		})
		return "", te
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &TransportError{Kind: KindEmptyResponse, Model: c.cfg.Model, Message: "undecodable response body", Err: err}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &TransportError{Kind: KindContentPolicy, Model: c.cfg.Model, Message: "prompt blocked: " + resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return "", &TransportError{Kind: KindEmptyResponse, Model: c.cfg.Model, Message: "no candidates"}
	}

	cand := resp.Candidates[0]
	if blockedFinishReasons[cand.FinishReason] {
		return "", &TransportError{Kind: KindContentPolicy, Model: c.cfg.Model, Message: "response blocked: " + cand.FinishReason}
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &TransportError{Kind: KindEmptyResponse, Model: c.cfg.Model, Message: "candidate has no text"}
	}

	c.log.Debug("genai request completed", map[string]interface{}{
		"images":       len(images),
		"durationMs":   time.Since(start).Milliseconds(),
		"finishReason": cand.FinishReason,
		"responseLen":  text.Len(),
	})
	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
