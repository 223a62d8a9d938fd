package matching

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "opportunity-matcher/internal/common/errors"
	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/session"
)

const (
	serviceName = "matching"
	DefaultPath = "/match"
)

// CandidateSource lists the opportunities a profile is matched against.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]OpportunityCandidate, error)
}

// SessionChecker vets a session before it is used.
type SessionChecker interface {
	Check(ctx context.Context, sess *session.Session) error
}

type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordMatch(ctx context.Context, outcome string, duration time.Duration)
}

type noopTelemetry struct{}

func (noopTelemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return noop.NewTracerProvider().Tracer("").Start(ctx, name)
}

func (noopTelemetry) RecordMatch(context.Context, string, time.Duration) {}

// Client submits profiles to the external matching service.
type Client struct {
	http        *apphttp.Client
	path        string
	envelope    Envelope
	sessions    session.Store
	source      CandidateSource
	checker     SessionChecker
	attachToken bool
	telemetry   Telemetry
	logger      logger.Logger
}

type Option func(*Client)

func WithEnvelope(e Envelope) Option {
	return func(c *Client) { c.envelope = e }
}

func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

func WithSessionChecker(checker SessionChecker) Option {
	return func(c *Client) { c.checker = checker }
}

// WithAttachToken sends the session's bearer token with match requests.
func WithAttachToken(attach bool) Option {
	return func(c *Client) { c.attachToken = attach }
}

func WithTelemetry(t Telemetry) Option {
	return func(c *Client) {
		if t != nil {
			c.telemetry = t
		}
	}
}

func NewClient(httpClient *apphttp.Client, sessions session.Store, source CandidateSource, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:      httpClient,
		path:      DefaultPath,
		envelope:  applicantEnvelope{},
		sessions:  sessions,
		source:    source,
		telemetry: noopTelemetry{},
		logger:    log.WithFields(map[string]interface{}{"component": "matching"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitMatch matches profile for the signed-in user userID. Nothing is
// sent unless the session store holds that user.
func (c *Client) SubmitMatch(ctx context.Context, userID int64, profile StudentProfile) (*MatchResponse, error) {
	if userID <= 0 {
		return nil, c.fail(ctx, apperrors.NewAuthenticationError("no signed-in user"))
	}
	if c.sessions == nil {
		return nil, c.fail(ctx, apperrors.NewAuthenticationError("no session store"))
	}

	sess, err := c.sessions.Current(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			c.logger.Warn("session lookup failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, c.fail(ctx, apperrors.NewAuthenticationError("no signed-in user"))
	}
	if sess.User.ID != userID {
		return nil, c.fail(ctx, apperrors.NewAuthenticationError(fmt.Sprintf("session belongs to user %d", sess.User.ID)))
	}

	return c.SubmitMatchAs(ctx, sess, profile)
}

// SubmitMatchAs matches profile for an identity the caller already holds,
// such as a workflow job's variables.
func (c *Client) SubmitMatchAs(ctx context.Context, sess *session.Session, profile StudentProfile) (*MatchResponse, error) {
	start := time.Now()

	ctx, span := c.telemetry.StartSpan(ctx, "matching.submit")
	defer span.End()

	resp, err := c.submit(ctx, sess, profile, span)

	outcome := outcomeFor(err)
	c.telemetry.RecordMatch(ctx, outcome, time.Since(start))
	metrics.MatchRequests.WithLabelValues(outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}

	metrics.MatchResultsReturned.Observe(float64(len(resp.Results)))
	span.SetAttributes(
		attribute.Int("match.results", len(resp.Results)),
		attribute.Int("match.total", resp.TotalOpportunities),
	)
	return resp, nil
}

func (c *Client) submit(ctx context.Context, sess *session.Session, profile StudentProfile, span trace.Span) (*MatchResponse, error) {
	if sess == nil || sess.User.ID <= 0 {
		return nil, apperrors.NewAuthenticationError("no signed-in user")
	}
	if c.checker != nil {
		if err := c.checker.Check(ctx, sess); err != nil {
			return nil, err
		}
	}

	if profile.UserID == 0 {
		profile.UserID = sess.User.ID
	}
	if profile.UserID != sess.User.ID {
		return nil, apperrors.NewAuthenticationError(fmt.Sprintf("profile belongs to user %d", profile.UserID))
	}

	candidates, err := c.snapshotCandidates(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.envelope.Encode(profile, candidates)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("encode %s envelope: %w", c.envelope.Name(), err))
	}

	span.SetAttributes(
		attribute.Int64("match.user_id", profile.UserID),
		attribute.Int("match.candidates", len(candidates)),
		attribute.String("match.envelope", c.envelope.Name()),
	)

	req := apphttp.Request{Method: http.MethodPost, Path: c.path, Body: body, Auth: apphttp.AuthNone}
	if c.attachToken {
		req.Auth = apphttp.AuthOptional
		req.Token = sess.Token
	}

	log := c.logger.WithFields(map[string]interface{}{
		"userId":     profile.UserID,
		"candidates": len(candidates),
		"envelope":   c.envelope.Name(),
	})
	log.Info("submitting match request", nil)

	callStart := time.Now()
	httpResp, err := c.http.Send(ctx, req)
	metrics.MatchRequestDuration.Observe(time.Since(callStart).Seconds())
	if err != nil {
		log.Warn("match request failed", map[string]interface{}{
			"errorCode": string(apperrors.CodeOf(err)),
			"error":     err.Error(),
		})
		return nil, err
	}

	resp, err := decodeResponse(httpResp.Body, httpResp.StatusCode, profile.UserID, candidates, log)
	if err != nil {
		return nil, err
	}

	log.Info("match request completed", map[string]interface{}{
		"results": len(resp.Results),
		"total":   resp.TotalOpportunities,
	})
	return resp, nil
}

// snapshotCandidates copies the source's list so later changes to it cannot
// reach an in-flight request.
func (c *Client) snapshotCandidates(ctx context.Context) ([]OpportunityCandidate, error) {
	if c.source == nil {
		return []OpportunityCandidate{}, nil
	}
	listed, err := c.source.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(listed))
	for _, cand := range listed {
		if seen[cand.ID] {
			return nil, apperrors.NewValidationError("opportunities", fmt.Sprintf("duplicate opportunity id %d", cand.ID))
		}
		seen[cand.ID] = true
	}
	return normalizeCandidates(listed), nil
}

func (c *Client) fail(ctx context.Context, err error) error {
	outcome := outcomeFor(err)
	c.telemetry.RecordMatch(ctx, outcome, 0)
	metrics.MatchRequests.WithLabelValues(outcome).Inc()
	return err
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidation:
		return metrics.OutcomeValidation
	case apperrors.ErrCodeAuthentication:
		return metrics.OutcomeAuthentication
	case apperrors.ErrCodeNetwork:
		return metrics.OutcomeNetwork
	case apperrors.ErrCodeService:
		return metrics.OutcomeService
	default:
		return metrics.OutcomeInternal
	}
}
