package vibegeneration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const TaskType = prompt.VibeGeneration

type Handler struct {
	config   *Config
	service  *generation.Service
	errorHdl *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, service *generation.Service, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		service:  service,
		errorHdl: errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) useCase() generation.UseCase[Output] {
	return generation.UseCase[Output]{
		Name:        TaskType,
		Validate:    validateOutput,
		MaxAttempts: h.config.MaxAttempts,
		CacheTTL:    h.config.CacheTTL,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job)
	if err != nil {
		h.errorHdl.HandleJobError(context.Background(), client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), camunda.GenerationTimeout(h.config.Timeout))
	defer cancel()
	ctx = generation.WithRequestID(ctx, fmt.Sprintf("job-%d", job.Key))

	resp, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHdl.HandleJobError(ctx, client, job, err)
		return
	}

	_ = camunda.CompleteJob(ctx, client, job, JobOutput{Output: resp.Data, GenerationMeta: resp.Meta}, h.logger)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute generates the vibe profile for one user. Photos, when present, are
// sent alongside the prompt and the call becomes multimodal.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	profile, err := h.normalize(input)
	if err != nil {
		return nil, err
	}

	images := make([]genai.ImageInput, 0, len(input.Photos))
	for i, photo := range input.Photos {
		img, err := genai.ImageInput{Base64Data: photo.Data, MimeType: photo.MimeType}.Normalize()
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("photos[%d]: %v", i, err))
		}
		images = append(images, img)
	}

	p, err := prompt.Render(TaskType, prompt.Args{
		"name":       profile.Name,
		"bio":        profile.Bio,
		"interests":  profile.Interests,
		"prompts":    profile.Prompts,
		"photoCount": len(images),
	})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{
		Prompt:   p,
		Images:   images,
		CacheKey: cacheKey(profile, images),
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}

// normalize trims the profile fields and drops empty entries.
func (h *Handler) normalize(input *Input) (*Input, error) {
	out := &Input{
		UserID: strings.TrimSpace(input.UserID),
		Name:   strings.TrimSpace(input.Name),
		Bio:    strings.TrimSpace(input.Bio),
	}
	if out.UserID == "" {
		return nil, errors.NewInvalidInputError("userId is required")
	}
	for _, interest := range input.Interests {
		if s := strings.TrimSpace(interest); s != "" {
			out.Interests = append(out.Interests, s)
		}
	}
	for _, pa := range input.Prompts {
		pa.Question = strings.TrimSpace(pa.Question)
		pa.Answer = strings.TrimSpace(pa.Answer)
		if pa.Answer != "" {
			out.Prompts = append(out.Prompts, pa)
		}
	}
	if out.Bio == "" && len(out.Interests) == 0 && len(out.Prompts) == 0 {
		return nil, errors.NewInvalidInputError("profile needs a bio, interests or prompt answers")
	}
	if h.config.MaxPhotos > 0 && len(input.Photos) > h.config.MaxPhotos {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("at most %d photos are accepted", h.config.MaxPhotos))
	}
	return out, nil
}

// cacheKey ties the entry to the user and to the exact profile content, so an
// edited profile misses.
func cacheKey(profile *Input, images []genai.ImageInput) string {
	data, _ := json.Marshal(struct {
		Bio       string         `json:"bio"`
		Name      string         `json:"name"`
		Interests []string       `json:"interests"`
		Prompts   []PromptAnswer `json:"prompts"`
	}{profile.Bio, profile.Name, profile.Interests, profile.Prompts})

	parts := []string{profile.UserID, string(data)}
	for _, img := range images {
		parts = append(parts, img.MimeType, img.Base64Data)
	}
	return cache.Key(TaskType, parts...)
}
