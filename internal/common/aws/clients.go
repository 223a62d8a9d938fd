// Package aws builds the SES and SNS clients used by the match digest.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Clients holds one client per enabled channel; a disabled channel stays nil.
type Clients struct {
	SES *ses.Client
	SNS *sns.Client
}

// LoadConfig resolves credentials from the default chain for region.
func LoadConfig(ctx context.Context, region string) (awssdk.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

func NewClients(ctx context.Context, region string, email, sms bool) (*Clients, error) {
	clients := &Clients{}
	if !email && !sms {
		return clients, nil
	}
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	if email {
		clients.SES = ses.NewFromConfig(cfg)
	}
	if sms {
		clients.SNS = sns.NewFromConfig(cfg)
	}
	return clients, nil
}
