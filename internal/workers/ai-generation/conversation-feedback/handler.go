package conversationfeedback

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
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const (
	TaskType = prompt.ConversationFeedback

	defaultUserSpeaker = "user"
)

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
		// No fallback exists for feedback; exhaustion fails the job with retries.
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

// Execute scores the user's side of a transcript. Exhaustion is returned as a
// GENERATION_EXHAUSTED error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	userSpeaker := strings.TrimSpace(input.UserSpeaker)
	if userSpeaker == "" {
		userSpeaker = defaultUserSpeaker
	}

	transcript := make([]prompt.Turn, 0, len(input.Transcript))
	userTurns := 0
	for i, turn := range input.Transcript {
		turn.Speaker = strings.TrimSpace(turn.Speaker)
		turn.Text = strings.TrimSpace(turn.Text)
		if turn.Speaker == "" {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("transcript[%d].speaker is required", i))
		}
		if turn.Text == "" {
			continue
		}
		if turn.Speaker == userSpeaker {
			userTurns++
		}
		transcript = append(transcript, turn)
	}
	if userTurns == 0 {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("transcript has no messages from %q", userSpeaker))
	}
	if h.config.MaxTurns > 0 && len(transcript) > h.config.MaxTurns {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("transcript exceeds %d turns", h.config.MaxTurns))
	}

	p, err := prompt.Render(TaskType, prompt.Args{
		"userSpeaker": userSpeaker,
		"transcript":  transcript,
	})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{
		Prompt:   p,
		CacheKey: transcriptKey(userSpeaker, transcript),
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}

func transcriptKey(userSpeaker string, transcript []prompt.Turn) string {
	parts := make([]string, 0, 2*len(transcript)+1)
	parts = append(parts, userSpeaker)
	for _, turn := range transcript {
		parts = append(parts, turn.Speaker, turn.Text)
	}
	return cache.Key(TaskType, parts...)
}
