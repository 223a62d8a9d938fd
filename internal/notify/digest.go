// Package notify sends a short digest of a student's strongest matches.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/common/validation"
	"opportunity-matcher/internal/matching"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	StatusSent     = "SENT"
	StatusPartial  = "PARTIAL"
	StatusSkipped  = "SKIPPED"
	StatusDisabled = "DISABLED"
	StatusFailed   = "FAILED"
)

// smsTitles caps how many titles an SMS lists.
const smsTitles = 3

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SenderID     string
}

type Recipient struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

type Result struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"`
	Channels       []string `json:"channels"`
	FailedChannels []string `json:"failedChannels,omitempty"`
	HighMatches    int      `json:"highMatches"`
	SentAt         string   `json:"sentAt"`
}

type Notifier struct {
	config Config
	ses    SESService
	sns    SNSService
	logger logger.Logger
	now    func() time.Time
}

// NewNotifier accepts nil clients for channels that are disabled.
func NewNotifier(cfg Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config: cfg,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
		now:    time.Now,
	}
}

// SendDigest notifies the recipient about the high-band items in view.
// Nothing is sent when there are none. Every enabled channel is tried. The
// retryable NotificationSendFailed error is returned only when no channel
// delivered; a partial delivery is reported as PARTIAL without an error.
func (n *Notifier) SendDigest(ctx context.Context, to Recipient, view matching.View) (*Result, error) {
	high := view.ByBand(matching.BandHigh)
	result := &Result{
		NotificationID: uuid.New().String(),
		Channels:       []string{},
		HighMatches:    len(high),
		SentAt:         n.now().UTC().Format(time.RFC3339),
	}

	log := n.logger.WithFields(map[string]interface{}{
		"userId":         to.UserID,
		"notificationId": result.NotificationID,
	})

	if len(high) == 0 {
		result.Status = StatusSkipped
		log.Debug("no high matches, digest skipped", nil)
		return result, nil
	}

	var firstErr error
	attempt := func(channel string, send func() error) {
		if err := send(); err != nil {
			metrics.NotificationsSent.WithLabelValues(channel, "failed").Inc()
			log.Error("digest send failed", map[string]interface{}{"channel": channel, "error": err.Error()})
			result.FailedChannels = append(result.FailedChannels, channel)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		metrics.NotificationsSent.WithLabelValues(channel, "sent").Inc()
		result.Channels = append(result.Channels, channel)
	}

	if n.config.EmailEnabled && n.ses != nil && to.Email != "" {
		if !validation.ValidateEmail(to.Email) {
			log.Warn("skipping email with invalid address", map[string]interface{}{"email": to.Email})
		} else {
			attempt(ChannelEmail, func() error { return n.sendEmail(ctx, to.Email, high) })
		}
	}

	if n.config.SMSEnabled && n.sns != nil && to.Phone != "" {
		if !validation.ValidatePhone(to.Phone) {
			log.Warn("skipping sms with invalid phone number", map[string]interface{}{"phone": to.Phone})
		} else {
			attempt(ChannelSMS, func() error { return n.sendSMS(ctx, to.Phone, high) })
		}
	}

	switch {
	case len(result.FailedChannels) > 0 && len(result.Channels) == 0:
		// Nothing reached the student, so a retry cannot duplicate a message.
		result.Status = StatusFailed
		return result, apperrors.NewNotificationSendFailedError(strings.Join(result.FailedChannels, ","), firstErr)
	case len(result.FailedChannels) > 0:
		result.Status = StatusPartial
		log.Warn("match digest partially sent", map[string]interface{}{
			"channels":       strings.Join(result.Channels, ","),
			"failedChannels": strings.Join(result.FailedChannels, ","),
		})
		return result, nil
	case len(result.Channels) == 0:
		result.Status = StatusDisabled
		return result, nil
	}
	result.Status = StatusSent
	log.Info("match digest sent", map[string]interface{}{"channels": strings.Join(result.Channels, ",")})
	return result, nil
}

func (n *Notifier) sendEmail(ctx context.Context, to string, items []matching.RankedItem) error {
	subject, body := RenderEmail(items)
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to string, items []matching.RankedItem) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(RenderSMS(items)),
	}
	if n.config.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.config.SenderID)},
		}
	}
	_, err := n.sns.Publish(ctx, input)
	return err
}

// RenderEmail lists every item with its percentage and reasons.
func RenderEmail(items []matching.RankedItem) (string, string) {
	subject := fmt.Sprintf("You have %d strong opportunity %s", len(items), plural(len(items), "match", "matches"))

	var b strings.Builder
	b.WriteString("These opportunities are a strong fit for your profile:\n\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%d%% match)\n", i+1, item.Title, item.Percent)
		if item.Description != "" && item.Description != matching.NoDescription {
			fmt.Fprintf(&b, "   %s\n", item.Description)
		}
		if len(item.Reasons) > 0 {
			fmt.Fprintf(&b, "   Why: %s\n", strings.Join(item.Reasons, "; "))
		}
	}
	return subject, b.String()
}

func RenderSMS(items []matching.RankedItem) string {
	titles := make([]string, 0, smsTitles)
	for i, item := range items {
		if i == smsTitles {
			break
		}
		titles = append(titles, item.Title)
	}
	msg := fmt.Sprintf("%d strong %s: %s", len(items), plural(len(items), "match", "matches"), strings.Join(titles, ", "))
	if len(items) > smsTitles {
		msg += fmt.Sprintf(" and %d more", len(items)-smsTitles)
	}
	return msg
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
