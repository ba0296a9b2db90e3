package dto

// UploadResponse acknowledges an accepted video upload.
type UploadResponse struct {
	JobID string `json:"job_id"`
}

// CompletionCallback is the webhook payload the worker posts when a
// conversion finishes. Exactly one of ResultLocation and Error is set.
type CompletionCallback struct {
	JobID          string `json:"job_id" binding:"required"`
	ResultLocation string `json:"result_location"`
	Error          string `json:"error"`
}

// StatusResponse is the pollable job state.
type StatusResponse struct {
	Status         string `json:"status"`
	ResultLocation string `json:"result_location,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
