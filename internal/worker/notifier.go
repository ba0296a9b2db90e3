package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidmesh/vidmesh-be/internal/api/dto"
)

// NotifierConfig holds webhook delivery settings.
type NotifierConfig struct {
	RequestTimeout    time.Duration
	RetryAttempts     int
	RetryInterval     time.Duration
	BackoffMultiplier float64
}

// Notifier delivers completion callbacks to the orchestrator. Delivery
// is at-least-once with bounded retries; the orchestrator's handler is
// idempotent for duplicates. Exhausting the retries loses the
// delivery, which is logged and accepted - the orchestrator's sweep
// policy covers permanently lost callbacks.
type Notifier struct {
	config *NotifierConfig
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(config *NotifierConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger,
	}
}

// Notify posts the completion report to callbackURL, retrying with
// backoff on network errors and 5xx responses. A 4xx response means
// the orchestrator understood and rejected the report (unknown job,
// unusable result); retrying cannot change that, so it counts as
// delivered.
func (n *Notifier) Notify(ctx context.Context, callbackURL string, payload dto.CompletionCallback) error {
	var lastErr error
	interval := n.config.RetryInterval

	for attempt := 1; attempt <= n.config.RetryAttempts; attempt++ {
		lastErr = n.send(ctx, callbackURL, payload)
		if lastErr == nil {
			n.logger.Info("Completion webhook delivered",
				slog.String("job_id", payload.JobID),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		n.logger.Warn("Webhook delivery attempt failed",
			slog.String("job_id", payload.JobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", n.config.RetryAttempts),
			slog.Any("error", lastErr),
		)

		if attempt < n.config.RetryAttempts {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return fmt.Errorf("webhook delivery canceled: %w", ctx.Err())
			}
			interval = time.Duration(float64(interval) * n.config.BackoffMultiplier)
		}
	}

	n.logger.Error("Webhook delivery lost after all retries",
		slog.String("job_id", payload.JobID),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.config.RetryAttempts, lastErr)
}

func (n *Notifier) send(ctx context.Context, callbackURL string, payload dto.CompletionCallback) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("orchestrator returned %s", resp.Status)
	}

	if resp.StatusCode >= 400 {
		// Delivered but rejected; nothing a retry can fix.
		n.logger.Warn("Orchestrator rejected webhook",
			slog.String("job_id", payload.JobID),
			slog.String("status", resp.Status),
		)
	}

	return nil
}
