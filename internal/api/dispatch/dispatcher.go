package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidmesh/vidmesh-be/internal/metrics"
)

// Failer marks a job as failed when the worker cannot be reached.
type Failer interface {
	MarkDispatchFailed(ctx context.Context, id string) error
}

// Config holds dispatcher settings.
type Config struct {
	WorkerURL         string
	CallbackURL       string
	RequestTimeout    time.Duration
	RetryAttempts     int
	RetryInterval     time.Duration
	BackoffMultiplier float64
}

// Request is the conversion request sent to the worker's /convert
// endpoint.
type Request struct {
	JobID         string `json:"job_id"`
	InputLocation string `json:"input_location"`
	CallbackURL   string `json:"callback_url"`
}

// Dispatcher sends conversion requests to the worker with bounded
// retries. Exhausting the retries is terminal for the job: the failer
// transitions it to failed, so a permanently unreachable worker can
// never strand a job in processing.
type Dispatcher struct {
	config *Config
	client *http.Client
	failer Failer
	logger *slog.Logger
}

// New creates a Dispatcher. The request timeout bounds each attempt;
// the conversion itself runs long after the worker accepts.
func New(config *Config, failer Failer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		failer: failer,
		logger: logger,
	}
}

// Dispatch delivers the conversion request, retrying with backoff.
// It blocks until accepted or exhausted and is meant to run in its own
// goroutine; the upload handler never waits on it.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID, inputLocation string) {
	var lastErr error
	interval := d.config.RetryInterval

	for attempt := 1; attempt <= d.config.RetryAttempts; attempt++ {
		lastErr = d.send(ctx, jobID, inputLocation)
		if lastErr == nil {
			metrics.IncDispatch("accepted")
			d.logger.Info("Conversion request accepted by worker",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt),
			)
			return
		}

		d.logger.Warn("Dispatch attempt failed",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.config.RetryAttempts),
			slog.Any("error", lastErr),
		)

		if attempt < d.config.RetryAttempts {
			metrics.IncDispatch("retried")
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				attempt = d.config.RetryAttempts
			}
			interval = time.Duration(float64(interval) * d.config.BackoffMultiplier)
		}
	}

	metrics.IncDispatch("exhausted")
	d.logger.Error("Dispatch retries exhausted, failing job",
		slog.String("job_id", jobID),
		slog.Any("error", lastErr),
	)

	if err := d.failer.MarkDispatchFailed(ctx, jobID); err != nil {
		d.logger.Error("Failed to mark job as dispatch-failed",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) send(ctx context.Context, jobID, inputLocation string) error {
	body, err := json.Marshal(Request{
		JobID:         jobID,
		InputLocation: inputLocation,
		CallbackURL:   d.config.CallbackURL,
	})
	if err != nil {
		return fmt.Errorf("failed to encode conversion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WorkerURL+"/convert", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("worker rejected conversion request: %s", resp.Status)
	}

	return nil
}
