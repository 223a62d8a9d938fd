package sendmatchdigest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/common/validation"
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/notify"
)

const TaskType = "send-match-digest"

type Notifier interface {
	SendDigest(ctx context.Context, to notify.Recipient, view matching.View) (*notify.Result, error)
}

type Handler struct {
	config       *Config
	notifier     Notifier
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Notifier     Notifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := configFromApp(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("%s needs a notifier", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		notifier:     opts.Notifier,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
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

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("variables", fmt.Sprintf("failed to parse job variables: %v", err))
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(result.Errors[0].Field, fmt.Sprintf("input validation failed: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewValidationError("variables", fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return &input, nil
}

// Execute sends the digest. Unlike the inline digest of match-opportunities,
// a channel failure fails the job so the engine can retry it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Notify.Email == "" && input.Notify.Phone == "" {
		return nil, errors.NewValidationError("notify", "notify needs an email or a phone")
	}

	to := input.Notify
	to.UserID = input.UserID

	result, err := h.notifier.SendDigest(ctx, to, input.Matches)
	if err != nil {
		return nil, err
	}

	h.logger.Info("match digest processed", map[string]interface{}{
		"userId":         input.UserID,
		"notificationId": result.NotificationID,
		"status":         result.Status,
	})
	return &Output{
		Notification: result,
		Delivered:    result.Status == notify.StatusSent || result.Status == notify.StatusPartial,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("create complete job command: %w", err))
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return errors.NewNetworkError("zeebe", fmt.Errorf("complete job: %w", err))
	}
	return nil
}
