package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/metrics"
)

// CompletionBudget is the time reserved after generation for reporting a job
// result to the broker.
const CompletionBudget = 5 * time.Second

// GenerationTimeout is the part of a job timeout left for generation once
// CompletionBudget is reserved. Timeouts too short to split are returned as is.
func GenerationTimeout(jobTimeout time.Duration) time.Duration {
	if jobTimeout > 2*CompletionBudget {
		return jobTimeout - CompletionBudget
	}
	return jobTimeout
}

// ReportContext detaches ctx from its deadline so a result computed under an
// expired generation deadline can still be sent, bounded by CompletionBudget.
func ReportContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), CompletionBudget)
}

// completeRetry is short: the job lease is the real deadline.
var completeRetry = &RetryConfig{
	MaxRetries: 2,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   time.Second,
}

// CompleteJob sends the output variables for job, retrying transient broker
// errors, and records the completion metric.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) error {
	ctx, cancel := ReportContext(ctx)
	defer cancel()

	_, err := Retry(ctx, completeRetry, func(ctx context.Context) (interface{}, error) {
		cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	}, "complete-job")
	if err != nil {
		log.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		metrics.WorkerJobsFailed.WithLabelValues(job.Type, "COMPLETE_FAILED").Inc()
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	log.Info("job completed", map[string]interface{}{"jobKey": job.Key})
	return nil
}
