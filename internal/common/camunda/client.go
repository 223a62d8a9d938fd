// Package camunda connects to the Zeebe gateway and opens job workers.
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/logger"
)

const initialRetryDelay = 2 * time.Second

// RetryWithBackoff runs operation up to maxRetries times, doubling the
// delay after each failure. It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, operation func(context.Context) error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(ctx); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying", operationName), map[string]interface{}{
			"error":       err,
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, i+1, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Connect opens a plaintext gateway connection and waits for the broker
// topology to answer.
func Connect(ctx context.Context, cfg config.CamundaConfig, log logger.Logger) (zbc.Client, error) {
	requestTimeout := config.GetDuration(cfg.RequestTimeout)
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	var client zbc.Client
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.BrokerAddress,
			UsePlaintextConnection: true,
		})
		if err != nil {
			return fmt.Errorf("create zeebe client: %w", err)
		}

		topologyCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		if _, err := c.NewTopologyCommand().Send(topologyCtx); err != nil {
			c.Close()
			return fmt.Errorf("reach zeebe broker at %s: %w", cfg.BrokerAddress, err)
		}
		client = c
		return nil
	}, cfg.ConnectRetries, initialRetryDelay, log, "zeebe connection")
	if err != nil {
		return nil, err
	}
	return client, nil
}

// HealthCheck asks the broker for its topology.
func HealthCheck(ctx context.Context, client zbc.Client) error {
	if _, err := client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
