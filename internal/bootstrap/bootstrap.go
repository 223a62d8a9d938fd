// Package bootstrap assembles the matching client and its collaborators
// from configuration. Both binaries start here.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"opportunity-matcher/internal/common/auth"
	appaws "opportunity-matcher/internal/common/aws"
	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/database"
	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/notify"
	"opportunity-matcher/internal/opportunity"
	"opportunity-matcher/internal/session"
)

const sessionTTL = 24 * time.Hour

type Components struct {
	Stores   *database.Clients
	Sessions session.Store
	Gateway  *apphttp.Client
	Source   matching.CandidateSource
	Matcher  *matching.Client
	// Notifier is nil when no notification channel is enabled.
	Notifier *notify.Notifier
}

type Options struct {
	// Static seeds the session when session.backend is static.
	Static    *session.Session
	Telemetry matching.Telemetry
}

func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*Components, error) {
	stores, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	c := &Components{Stores: stores}

	var base session.Store
	switch cfg.Session.Backend {
	case "redis":
		base = session.NewRedisStore(stores.Redis.Client, cfg.Session.KeyPrefix, sessionTTL, log)
	default:
		base = session.NewStatic(opts.Static)
	}
	sessions := session.NewScoped(base)
	c.Sessions = sessions

	if cfg.Gateway.BaseURL != "" {
		c.Gateway = apphttp.NewClient("gateway", cfg.Gateway.BaseURL, config.GetDuration(cfg.Gateway.Timeout),
			apphttp.WithTokenSource(sessions), apphttp.WithLogger(log))
	}

	source, err := opportunity.New(cfg.Opportunities, opportunity.Deps{
		Gateway: c.Gateway,
		Stores:  stores,
		Logger:  log,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Source = source

	envelope, err := matching.NewEnvelope(cfg.Matching.Envelope)
	if err != nil {
		c.Close()
		return nil, err
	}

	var checkerOpts []auth.CheckerOption
	if cfg.Auth.VerifyExpiry {
		checkerOpts = append(checkerOpts, auth.WithExpiryCheck())
	}
	if cfg.Auth.VerifyRemote && c.Gateway != nil {
		checkerOpts = append(checkerOpts, auth.WithRemoteVerification(auth.NewClient(c.Gateway)))
	}

	// The match client reads the token per request and never touches the store.
	matchHTTP := apphttp.NewClient("matching", cfg.Matching.BaseURL, config.GetDuration(cfg.Matching.Timeout),
		apphttp.WithLogger(log))

	matchOpts := []matching.Option{
		matching.WithEnvelope(envelope),
		matching.WithPath(cfg.Matching.Path),
		matching.WithAttachToken(cfg.Auth.AttachToMatch),
		matching.WithSessionChecker(auth.NewChecker(log, checkerOpts...)),
	}
	if opts.Telemetry != nil {
		matchOpts = append(matchOpts, matching.WithTelemetry(opts.Telemetry))
	}
	c.Matcher = matching.NewClient(matchHTTP, sessions, source, log, matchOpts...)

	notifier, err := buildNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Notifier = notifier

	return c, nil
}

func buildNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*notify.Notifier, error) {
	if !cfg.Email.Enabled && !cfg.SMS.Enabled {
		return nil, nil
	}
	clients, err := appaws.NewClients(ctx, cfg.AWS.Region, cfg.Email.Enabled, cfg.SMS.Enabled)
	if err != nil {
		return nil, err
	}

	// Typed nil clients must not reach the notifier as non-nil interfaces.
	var sesClient notify.SESService
	if clients.SES != nil {
		sesClient = clients.SES
	}
	var snsClient notify.SNSService
	if clients.SNS != nil {
		snsClient = clients.SNS
	}

	return notify.NewNotifier(notify.Config{
		EmailEnabled: cfg.Email.Enabled,
		FromEmail:    cfg.Email.FromEmail,
		SMSEnabled:   cfg.SMS.Enabled,
		SenderID:     cfg.SMS.SenderID,
	}, sesClient, snsClient, log), nil
}

// Ready reports whether every opened store answers.
func (c *Components) Ready(ctx context.Context) error {
	return c.Stores.Ping(ctx)
}

func (c *Components) Close() error {
	if c.Stores == nil {
		return nil
	}
	return c.Stores.Close()
}
