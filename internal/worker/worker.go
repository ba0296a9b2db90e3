package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/dto"
	"github.com/vidmesh/vidmesh-be/internal/worker/converter"
)

// ErrQueueFull is returned when the conversion queue cannot accept
// another job.
var ErrQueueFull = errors.New("conversion queue full")

// ConversionRequest is a /convert request accepted into the queue.
type ConversionRequest struct {
	JobID         string `json:"job_id" binding:"required"`
	InputLocation string `json:"input_location" binding:"required"`
	CallbackURL   string `json:"callback_url" binding:"required"`
}

// Config holds worker service configuration.
type Config struct {
	Logger     *slog.Logger
	Converter  converter.Converter
	Notifier   *Notifier
	TempDir    string
	QueueSize  int
	JobTimeout time.Duration
}

// Service accepts conversion requests and runs them one at a time.
// The converter may be a single shared model instance that cannot run
// two inferences in parallel, so a single goroutine drains the queue
// while Enqueue keeps accepting new requests concurrently.
type Service struct {
	logger     *slog.Logger
	conv       converter.Converter
	notifier   *Notifier
	tempDir    string
	jobTimeout time.Duration

	queue    chan ConversionRequest
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates the worker service. A nil converter marks the
// capability as unavailable: the service still serves HTTP but rejects
// every conversion request with a not-ready signal.
func NewService(cfg *Config) (*Service, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	return &Service{
		logger:     cfg.Logger,
		conv:       cfg.Converter,
		notifier:   cfg.Notifier,
		tempDir:    cfg.TempDir,
		jobTimeout: cfg.JobTimeout,
		queue:      make(chan ConversionRequest, cfg.QueueSize),
		stopChan:   make(chan struct{}),
	}, nil
}

// Ready reports whether the converter capability is available.
func (s *Service) Ready() bool {
	return s.conv != nil
}

// Enqueue accepts a conversion request without blocking. The request
// runs in the background; the caller's HTTP response returns
// immediately.
func (s *Service) Enqueue(req ConversionRequest) error {
	if !s.Ready() {
		return fmt.Errorf("cannot accept job %s: %w", req.JobID, domain.ErrConverterUnavailable)
	}

	select {
	case s.queue <- req:
		s.logger.Info("Conversion request queued",
			slog.String("job_id", req.JobID),
			slog.Int("queued", len(s.queue)),
		)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start spawns the single conversion loop.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.convertLoop(ctx)

	s.logger.Info("Worker service started",
		slog.Int("queue_size", cap(s.queue)),
		slog.Duration("job_timeout", s.jobTimeout),
		slog.Bool("converter_ready", s.Ready()),
	)
}

// Stop drains the in-flight job and stops the loop.
func (s *Service) Stop() {
	s.logger.Info("Stopping worker service...")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Worker service stopped")
}

// convertLoop serializes access to the converter: one job at a time,
// in queue order.
func (s *Service) convertLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case req := <-s.queue:
			s.process(ctx, req)
		}
	}
}

// process runs the full conversion for one job and reports the outcome
// to the orchestrator. Scratch files and the staged input video are
// removed on every exit path, success or failure.
func (s *Service) process(ctx context.Context, req ConversionRequest) {
	s.logger.Info("Starting conversion",
		slog.String("job_id", req.JobID),
		slog.String("input", req.InputLocation),
	)

	workDir := filepath.Join(s.tempDir, req.JobID)

	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			s.logger.Error("Failed to remove scratch dir",
				slog.String("job_id", req.JobID),
				slog.Any("error", err),
			)
		}
		// This worker holds the staged video on the shared filesystem,
		// so it owns the input deletion. The orchestrator tolerates the
		// file already being gone.
		if err := os.Remove(req.InputLocation); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to remove input video",
				slog.String("job_id", req.JobID),
				slog.Any("error", err),
			)
		}
	}()

	payload := dto.CompletionCallback{JobID: req.JobID}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		payload.Error = fmt.Sprintf("failed to create scratch dir: %v", err)
	} else {
		jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
		resultPath, err := s.conv.Run(jobCtx, req.InputLocation, workDir)
		cancel()

		if err != nil {
			s.logger.Error("Conversion failed",
				slog.String("job_id", req.JobID),
				slog.Any("error", err),
			)
			payload.Error = err.Error()
		} else {
			s.logger.Info("Conversion finished",
				slog.String("job_id", req.JobID),
				slog.String("result", resultPath),
			)
			payload.ResultLocation = resultPath
		}
	}

	if err := s.notifier.Notify(ctx, req.CallbackURL, payload); err != nil {
		s.logger.Error("Completion report lost",
			slog.String("job_id", req.JobID),
			slog.Any("error", err),
		)
	}
}
