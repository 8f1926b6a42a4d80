package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/generation"
	"vibe-workers/pkg/registry"
)

// serve binds the JSON body into In, runs exec and writes {data, meta}.
func serve[In, Out any](exec func(context.Context, *In) (*generation.Response[Out], error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := c.ShouldBindJSON(&in); err != nil {
			RespondError(c, errors.NewInvalidInputError(fmt.Sprintf("invalid request body: %v", err)))
			return
		}

		resp, err := exec(c.Request.Context(), &in)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, resp)
	}
}

// BrokerChecker reports whether the workflow broker answers.
type BrokerChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	service *generation.Service
	broker  BrokerChecker
}

// NewHealthHandler builds the health endpoint. broker may be nil when no
// Zeebe workers run.
func NewHealthHandler(service *generation.Service, broker BrokerChecker) *HealthHandler {
	return &HealthHandler{service: service, broker: broker}
}

// HealthCheck always answers 200; a missing cache only degrades latency and
// the HTTP API keeps serving without the broker.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	cacheAvailable := false
	if h.service != nil {
		cacheAvailable = h.service.CacheAvailable(ctx)
	}
	body := gin.H{
		"status":         "ok",
		"cacheAvailable": cacheAvailable,
	}
	if h.broker != nil {
		body["brokerAvailable"] = h.broker.HealthCheck(ctx) == nil
	}
	c.JSON(http.StatusOK, body)
}

func ListTemplates(c *gin.Context) {
	RespondOK(c, gin.H{"data": registry.Catalog().UseCases})
}
