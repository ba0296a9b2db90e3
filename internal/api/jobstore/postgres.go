package jobstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/shared/postgresql"
)

// PostgresStore persists jobs in the jobs table. A partial update is a
// single UPDATE statement, so it is atomic per row with respect to
// concurrent reads.
//
// Expected schema:
//
//	CREATE TABLE jobs (
//	    job_id          TEXT PRIMARY KEY,
//	    status          TEXT NOT NULL,
//	    input_location  TEXT NOT NULL,
//	    result_location TEXT NOT NULL DEFAULT '',
//	    error           TEXT NOT NULL DEFAULT '',
//	    created_at      TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a job store backed by the given PostgreSQL client.
func NewPostgresStore(pg *postgresql.Client) *PostgresStore {
	return &PostgresStore{
		db: pg.GetDB(),
	}
}

func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, status, input_location, result_location, error, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Status,
		job.InputLocation,
		job.ResultLocation,
		job.Error,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT job_id, status, input_location, result_location, error, created_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id string, update Update) error {
	query := `UPDATE jobs SET job_id = job_id`
	args := []interface{}{}
	argIdx := 1

	if update.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, *update.Status)
		argIdx++
	}

	if update.ResultLocation != nil {
		query += fmt.Sprintf(", result_location = $%d", argIdx)
		args = append(args, *update.ResultLocation)
		argIdx++
	}

	if update.Error != nil {
		query += fmt.Sprintf(", error = $%d", argIdx)
		args = append(args, *update.Error)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE job_id = $%d", argIdx)
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM jobs WHERE job_id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	query := `
		SELECT job_id, status, input_location, result_location, error, created_at
		FROM jobs
		ORDER BY created_at DESC
	`

	err := s.db.SelectContext(ctx, &jobs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
