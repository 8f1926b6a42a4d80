package compatibility

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

const TaskType = prompt.Compatibility

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

// Execute scores a pair of users. The pair is unordered: (a, b) and (b, a)
// render the same prompt and share one cache entry.
func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	a, b := cleanProfile(input.UserA), cleanProfile(input.UserB)
	switch {
	case a.UserID == "" || b.UserID == "":
		return nil, errors.NewInvalidInputError("userA.userId and userB.userId are required")
	case a.UserID == b.UserID:
		return nil, errors.NewInvalidInputError("a user cannot be compared with themselves")
	}
	if b.UserID < a.UserID {
		a, b = b, a
	}

	p, err := prompt.Render(TaskType, prompt.Args{"userA": a, "userB": b})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	uc := generation.UseCase[Output]{
		Name:        TaskType,
		Validate:    validatorFor(a, b),
		MaxAttempts: h.config.MaxAttempts,
		CacheTTL:    h.config.CacheTTL,
	}
	resp, err := generation.Perform(ctx, h.service, uc, generation.Request{
		Prompt:   p,
		CacheKey: cache.PairKey(TaskType, a.UserID, b.UserID, digest(a), digest(b)),
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}

func cleanProfile(p Profile) Profile {
	out := Profile{
		UserID:     strings.TrimSpace(p.UserID),
		Name:       strings.TrimSpace(p.Name),
		Age:        p.Age,
		Bio:        strings.TrimSpace(p.Bio),
		LookingFor: strings.TrimSpace(p.LookingFor),
		Interests:  []string{},
	}
	for _, interest := range p.Interests {
		if s := strings.TrimSpace(interest); s != "" {
			out.Interests = append(out.Interests, s)
		}
	}
	return out
}

func digest(p Profile) string {
	data, _ := json.Marshal(p)
	return string(data)
}
