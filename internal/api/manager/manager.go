package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidmesh/vidmesh-be/internal/api/artifact"
	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/jobstore"
	"github.com/vidmesh/vidmesh-be/internal/metrics"
)

// Manager is the state machine between the HTTP surface and the job
// store. It is the sole writer of status, result location and error.
//
// Transitions are serialized by a mutex so the read-check-write on a
// terminal status is atomic within the orchestrator process: a
// duplicate callback can never overwrite a terminal state, and readers
// never observe completed without its result location (status and
// result are one store write).
type Manager struct {
	store  jobstore.Store
	files  *artifact.Store
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Manager over the given store and artifact store.
func New(store jobstore.Store, files *artifact.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		files:  files,
		logger: logger,
	}
}

// Create stores a new processing job for the staged input and returns
// it. Ids are random UUIDv4 tokens, so collisions are negligible and
// ids are never reused.
func (m *Manager) Create(ctx context.Context, inputLocation string) (*domain.Job, error) {
	job := &domain.Job{
		ID:            uuid.New().String(),
		Status:        domain.JobStatusProcessing,
		InputLocation: inputLocation,
		CreatedAt:     time.Now().UTC(),
	}

	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	metrics.IncJobCreated()
	m.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("input", inputLocation),
	)
	return job, nil
}

// Status returns the current job record.
func (m *Manager) Status(ctx context.Context, id string) (*domain.Job, error) {
	return m.store.Get(ctx, id)
}

// HandleCallback applies a worker completion report. It is idempotent:
// a callback for a job that is already terminal is accepted and has no
// effect. A success callback whose result location is missing or
// unreadable forces the job to failed and reports ErrInvalidResult, so
// a success report can never leave the job processing.
func (m *Manager) HandleCallback(ctx context.Context, id, resultLocation, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.Terminal() {
		m.logger.Info("Duplicate callback for terminal job ignored",
			slog.String("job_id", id),
			slog.String("status", job.Status),
		)
		return nil
	}

	if errMsg != "" {
		if err := m.failLocked(ctx, id, errMsg, "callback"); err != nil {
			return err
		}
		return nil
	}

	if resultLocation == "" || !m.files.Readable(resultLocation) {
		reason := fmt.Sprintf("worker reported an unreadable result location: %q", resultLocation)
		if err := m.failLocked(ctx, id, reason, "invalid_result"); err != nil {
			return err
		}
		return domain.ErrInvalidResult
	}

	update := jobstore.Update{
		Status:         jobstore.String(domain.JobStatusCompleted),
		ResultLocation: jobstore.String(resultLocation),
	}
	if err := m.store.UpdateFields(ctx, id, update); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	metrics.IncJobFinished(domain.JobStatusCompleted, "callback")
	m.logger.Info("Job completed",
		slog.String("job_id", id),
		slog.String("result", resultLocation),
	)
	return nil
}

// MarkDispatchFailed transitions a job to failed after the dispatcher
// exhausted its retries. A job that already turned terminal (a late
// callback won the race) is left untouched.
func (m *Manager) MarkDispatchFailed(ctx context.Context, id string) error {
	return m.Fail(ctx, id, domain.ErrWorkerUnreachable.Error(), "dispatch")
}

// Fail force-transitions a processing job to failed. Terminal jobs are
// left untouched; unknown ids report ErrJobNotFound.
func (m *Manager) Fail(ctx context.Context, id, reason, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	return m.failLocked(ctx, id, reason, cause)
}

// failLocked writes the terminal failed state. Callers hold m.mu and
// have verified the job exists and is not terminal.
func (m *Manager) failLocked(ctx context.Context, id, reason, cause string) error {
	update := jobstore.Update{
		Status: jobstore.String(domain.JobStatusFailed),
		Error:  jobstore.String(reason),
	}
	if err := m.store.UpdateFields(ctx, id, update); err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	metrics.IncJobFinished(domain.JobStatusFailed, cause)
	m.logger.Warn("Job failed",
		slog.String("job_id", id),
		slog.String("cause", cause),
		slog.String("error", reason),
	)
	return nil
}

// Release validates that the job is completed, removes its record and
// returns the final job so the caller can stream the artifact. Exactly
// one of two concurrent callers wins: the loser observes
// ErrJobNotFound once the record is gone. File deletion is the
// caller's duty after streaming, via CleanupFiles.
func (m *Manager) Release(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusCompleted {
		return nil, domain.ErrJobNotCompleted
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}

	metrics.IncJobDownloaded()
	m.logger.Info("Job released for download",
		slog.String("job_id", id),
	)
	return job, nil
}

// CleanupFiles deletes the result artifact and the staged input. Both
// removes tolerate already-deleted files, so it is safe when the
// worker owns (and already performed) the input deletion.
func (m *Manager) CleanupFiles(job *domain.Job) {
	if err := m.files.Remove(job.ResultLocation); err != nil {
		m.logger.Error("Failed to remove result file",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
	if err := m.files.Remove(job.InputLocation); err != nil {
		m.logger.Error("Failed to remove input file",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// Reclaim removes an abandoned terminal job and both of its files.
// Used by the orphan sweeper when the client never downloads.
func (m *Manager) Reclaim(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Terminal() {
		return nil
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.CleanupFiles(job)
	m.logger.Info("Reclaimed abandoned job",
		slog.String("job_id", id),
		slog.String("status", job.Status),
	)
	return nil
}

// List exposes the tracked jobs to the orphan sweeper.
func (m *Manager) List(ctx context.Context) ([]domain.Job, error) {
	return m.store.List(ctx)
}
