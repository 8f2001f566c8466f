package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"HomePulse/internal/models"
)

// LogChannel writes alerts to the process log. Always registered so an alert
// is never silently dropped even with no external sinks configured.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, alert models.Alert) error {
	c.logger.Warn("ALERT",
		"type", alert.Type,
		"severity", alert.Severity,
		"service", alert.ServiceName,
		"service_id", alert.ServiceID,
		"message", alert.Message,
	)
	return nil
}

// WebhookChannel POSTs the alert as JSON to a configured endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// RedisChannel publishes alerts on a Redis pub/sub channel so sibling
// processes (or a notification daemon) can pick them up.
type RedisChannel struct {
	client  *redis.Client
	channel string
}

func NewRedisChannel(client *redis.Client, channel string) *RedisChannel {
	return &RedisChannel{client: client, channel: channel}
}

func (c *RedisChannel) Name() string { return "redis" }

func (c *RedisChannel) Send(ctx context.Context, alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}

	return nil
}
