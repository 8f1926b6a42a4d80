package summarizetext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vibe-workers/internal/common/cache"
	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const TaskType = prompt.SummarizeText

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

// Execute summarizes input.Text. Identical text is served from the cache.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewInvalidInputError("text is required")
	}
	if h.config.MaxTextRunes > 0 && utf8.RuneCountInString(text) > h.config.MaxTextRunes {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("text exceeds %d characters", h.config.MaxTextRunes))
	}

	p, err := prompt.Render(TaskType, prompt.Args{"text": text})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{
		Prompt:   p,
		CacheKey: cache.Key(TaskType, text),
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}
