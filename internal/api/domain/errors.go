package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to the store,
	// including after a successful download has removed the record.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCompleted is returned when a download is attempted before
	// the job has reached the completed status.
	ErrJobNotCompleted = errors.New("job not completed")

	// ErrInvalidResult is returned when a success callback references a
	// result location that does not exist or is not readable.
	ErrInvalidResult = errors.New("invalid result location")

	// ErrWorkerUnreachable marks a job whose dispatch to the worker
	// exhausted all retry attempts.
	ErrWorkerUnreachable = errors.New("worker unreachable")

	// ErrConverterUnavailable is returned by the worker when its
	// converter capability failed to initialize at startup.
	ErrConverterUnavailable = errors.New("converter unavailable")

	// ErrStorageUnavailable is returned when the job store backend
	// cannot be reached; no job is created or mutated in that case.
	ErrStorageUnavailable = errors.New("job storage unavailable")
)
