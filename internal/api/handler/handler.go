package handler

import (
	"context"
	"log/slog"

	"github.com/vidmesh/vidmesh-be/internal/api/artifact"
	"github.com/vidmesh/vidmesh-be/internal/api/manager"
)

// Dispatcher triggers the asynchronous conversion request for a new job.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID, inputLocation string)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Manager       *manager.Manager
	Files         *artifact.Store
	Dispatcher    Dispatcher
	MaxUploadSize int64
}

// JobHandler handles the conversion job HTTP surface.
type JobHandler struct {
	logger        *slog.Logger
	manager       *manager.Manager
	files         *artifact.Store
	dispatcher    Dispatcher
	maxUploadSize int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:        deps.Logger,
		manager:       deps.Manager,
		files:         deps.Files,
		dispatcher:    deps.Dispatcher,
		maxUploadSize: deps.MaxUploadSize,
	}
}
