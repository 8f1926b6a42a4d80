package practiceconversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const TaskType = prompt.PracticeConversation

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

// Execute produces the match's next reply. Conversational turns are never
// cached.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, errors.NewInvalidInputError("message is required")
	}

	history := make([]prompt.Turn, 0, len(input.History))
	for i, turn := range input.History {
		turn.Speaker = strings.TrimSpace(turn.Speaker)
		turn.Text = strings.TrimSpace(turn.Text)
		if turn.Speaker == "" {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("history[%d].speaker is required", i))
		}
		if turn.Text == "" {
			continue
		}
		history = append(history, turn)
	}
	if h.config.MaxHistory > 0 && len(history) > h.config.MaxHistory {
		history = history[len(history)-h.config.MaxHistory:]
	}

	p, err := prompt.Render(TaskType, prompt.Args{
		"persona":  input.Persona,
		"scenario": input.Scenario,
		"history":  history,
		"message":  message,
	})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{Prompt: p})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}
