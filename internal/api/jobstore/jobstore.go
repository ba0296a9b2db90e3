package jobstore

import (
	"context"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
)

// Update is a partial job record. Nil fields are left untouched; the
// whole update is applied atomically with respect to concurrent Gets.
type Update struct {
	Status         *string
	ResultLocation *string
	Error          *string
}

// Store persists one record per job. Backends differ in durability:
// the in-memory store loses all jobs on restart, the redis and
// postgres stores survive orchestrator restarts.
type Store interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	UpdateFields(ctx context.Context, id string, update Update) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)

	// List returns all tracked jobs. Used by the orphan sweeper.
	List(ctx context.Context) ([]domain.Job, error)
}

// String returns a pointer to s, for building Update values.
func String(s string) *string {
	return &s
}

func (u Update) apply(job *domain.Job) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.ResultLocation != nil {
		job.ResultLocation = *u.ResultLocation
	}
	if u.Error != nil {
		job.Error = *u.Error
	}
}
