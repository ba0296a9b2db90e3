package domain

import "time"

// Job status constants. A job starts as processing and ends in exactly
// one of completed or failed; no other transition is legal.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job represents one tracked video-to-mesh conversion request.
type Job struct {
	ID             string    `db:"job_id" json:"job_id"`
	Status         string    `db:"status" json:"status"`
	InputLocation  string    `db:"input_location" json:"input_location"`
	ResultLocation string    `db:"result_location" json:"result_location,omitempty"`
	Error          string    `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
