package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/manager"
)

// Config holds the sweep thresholds. A zero age disables the
// corresponding reclaim, which preserves the accepted resource leak:
// without a max processing age, a job whose worker callback is
// permanently lost stays processing forever.
type Config struct {
	Interval         time.Duration
	MaxProcessingAge time.Duration
	ResultTTL        time.Duration
}

// Sweeper periodically force-fails stale processing jobs and reclaims
// terminal jobs whose artifact was never downloaded.
type Sweeper struct {
	config  *Config
	manager *manager.Manager
	logger  *slog.Logger
}

// New creates a Sweeper.
func New(config *Config, mgr *manager.Manager, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		config:  config,
		manager: mgr,
		logger:  logger,
	}
}

// Enabled reports whether any sweep policy is configured.
func (s *Sweeper) Enabled() bool {
	return s.config.MaxProcessingAge > 0 || s.config.ResultTTL > 0
}

// Run loops until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.config.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info("Orphan sweeper started",
		slog.Duration("interval", interval),
		slog.Duration("max_processing_age", s.config.MaxProcessingAge),
		slog.Duration("result_ttl", s.config.ResultTTL),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Orphan sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the tracked jobs.
func (s *Sweeper) Sweep(ctx context.Context) {
	jobs, err := s.manager.List(ctx)
	if err != nil {
		s.logger.Error("Sweep failed to list jobs", slog.Any("error", err))
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		age := now.Sub(job.CreatedAt)

		switch {
		case job.Status == domain.JobStatusProcessing &&
			s.config.MaxProcessingAge > 0 && age > s.config.MaxProcessingAge:
			s.logger.Warn("Force-failing stale processing job",
				slog.String("job_id", job.ID),
				slog.Duration("age", age),
			)
			if err := s.manager.Fail(ctx, job.ID, "conversion timed out waiting for worker callback", "sweep"); err != nil {
				s.logger.Error("Failed to force-fail job",
					slog.String("job_id", job.ID),
					slog.Any("error", err),
				)
			}

		case job.Terminal() &&
			s.config.ResultTTL > 0 && age > s.config.ResultTTL:
			if err := s.manager.Reclaim(ctx, job.ID); err != nil {
				s.logger.Error("Failed to reclaim job",
					slog.String("job_id", job.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}
