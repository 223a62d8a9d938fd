package matchopportunities

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
	"opportunity-matcher/internal/session"
)

const TaskType = "match-opportunities"

// Matcher submits a profile on behalf of the identity carried by the job.
type Matcher interface {
	SubmitMatchAs(ctx context.Context, sess *session.Session, profile matching.StudentProfile) (*matching.MatchResponse, error)
}

type Notifier interface {
	SendDigest(ctx context.Context, to notify.Recipient, view matching.View) (*notify.Result, error)
}

// JobTelemetry records job outcomes; observability.Observability satisfies it.
type JobTelemetry interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
}

type Handler struct {
	config       *Config
	matcher      Matcher
	notifier     Notifier
	telemetry    JobTelemetry
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Matcher      Matcher
	Notifier     Notifier
	Telemetry    JobTelemetry
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := configFromApp(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Matcher == nil {
		return nil, fmt.Errorf("%s needs a matcher", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		matcher:      opts.Matcher,
		notifier:     opts.Notifier,
		telemetry:    opts.Telemetry,
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

	status := "completed"
	if err != nil {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}

	duration := time.Since(startTime)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(duration.Seconds())
	if h.telemetry != nil {
		h.telemetry.RecordJobProcessed(ctx, status)
		h.telemetry.RecordJobDuration(ctx, duration, status)
	}
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("variables", fmt.Sprintf("failed to parse job variables: %v", err))
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		first := result.Errors[0]
		return nil, errors.NewValidationError(first.Field, fmt.Sprintf("input validation failed: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewValidationError("variables", fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return &input, nil
}

// Execute matches the job's profile and, when configured, sends the digest.
// A digest failure is reported in the output and does not fail the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserID <= 0 {
		return nil, errors.NewAuthenticationError("job carries no user")
	}

	profile, err := matching.BuildProfile(input.UserID, input.Profile)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		Token: input.Token,
		User:  session.User{ID: input.UserID, Role: input.Role},
	}
	resp, err := h.matcher.SubmitMatchAs(session.NewContext(ctx, sess), sess, profile)
	if err != nil {
		return nil, err
	}

	view := matching.Present(resp)
	output := &Output{
		Matches:     view,
		HighMatches: len(view.ByBand(matching.BandHigh)),
	}

	if h.config.SendDigest && h.notifier != nil && input.Notify != nil {
		to := *input.Notify
		to.UserID = input.UserID
		result, err := h.notifier.SendDigest(ctx, to, view)
		if err != nil {
			h.logger.Warn("match digest not delivered", map[string]interface{}{
				"userId": input.UserID,
				"error":  err.Error(),
			})
		}
		output.Notification = result
	}

	h.logger.Info("match completed", map[string]interface{}{
		"userId":      input.UserID,
		"results":     len(view.Items),
		"highMatches": output.HighMatches,
	})
	return output, nil
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
