package listopportunities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/matching"
)

const TaskType = "list-opportunities"

type Handler struct {
	config       *Config
	source       matching.CandidateSource
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, source matching.CandidateSource, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		source:       source,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	err := json.Unmarshal([]byte(job.GetVariables()), &input)
	if err != nil {
		err = errors.NewValidationError("variables", fmt.Sprintf("parse input: %v", err))
	} else {
		var output *Output
		if output, err = h.execute(ctx, &input); err == nil {
			err = h.completeJob(ctx, client, job, output)
		}
	}

	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Limit < 0 {
		return nil, errors.NewValidationError("limit", "limit must not be negative")
	}

	start := time.Now()
	candidates, err := h.source.Candidates(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("opportunities", err)
		}
		return nil, err
	}

	now := h.now()
	out := make([]matching.OpportunityCandidate, 0, len(candidates))
	for _, c := range candidates {
		if input.Type != "" && c.Type != input.Type {
			continue
		}
		if input.OpenOnly && c.Criteria != nil && c.Criteria.Deadline != nil && c.Criteria.Deadline.Before(now) {
			continue
		}
		out = append(out, c)
		if input.Limit > 0 && len(out) == input.Limit {
			break
		}
	}

	return &Output{
		Opportunities:      out,
		RowCount:           len(out),
		QueryExecutionTime: time.Since(start).Milliseconds(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("create complete job command: %w", err))
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return errors.NewNetworkError("zeebe", fmt.Errorf("complete job: %w", err))
	}
	return nil
}
