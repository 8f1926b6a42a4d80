package photoverification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/genai"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const TaskType = prompt.PhotoVerification

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

// Execute compares the selfie with the profile photos. The selfie is always
// the first image sent. Results below MinConfidence are never reported as
// verified, and results are never cached.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	if len(input.ProfilePhotos) == 0 {
		return nil, errors.NewInvalidInputError("at least one profile photo is required")
	}
	if h.config.MaxProfilePhotos > 0 && len(input.ProfilePhotos) > h.config.MaxProfilePhotos {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("at most %d profile photos are accepted", h.config.MaxProfilePhotos))
	}

	selfie, err := genai.ImageInput{Base64Data: input.Selfie.Data, MimeType: input.Selfie.MimeType}.Normalize()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("selfie: %v", err))
	}
	images := []genai.ImageInput{selfie}
	for i, photo := range input.ProfilePhotos {
		img, err := genai.ImageInput{Base64Data: photo.Data, MimeType: photo.MimeType}.Normalize()
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("profilePhotos[%d]: %v", i, err))
		}
		images = append(images, img)
	}

	p, err := prompt.Render(TaskType, prompt.Args{"profilePhotoCount": len(input.ProfilePhotos)})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{
		Prompt: p,
		Images: images,
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}

	if resp.Data.Verified && resp.Data.Confidence < h.config.MinConfidence {
		h.logger.Info("downgrading low-confidence verification", map[string]interface{}{
			"confidence": resp.Data.Confidence,
			"userId":     input.UserID,
		})
		resp.Data.Verified = false
	}
	return resp, nil
}
