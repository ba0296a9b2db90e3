package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/dto"
)

// Status handles GET /api/v1/status/:job_id
// Pollable endpoint for the client to observe conversion progress.
func (h *JobHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.manager.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
			return
		}
		h.logger.Error("Failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: domain.ErrStorageUnavailable.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:         job.Status,
		ResultLocation: job.ResultLocation,
		Error:          job.Error,
	})
}

// Download handles GET /api/v1/download/:job_id
// Streams the artifact for a completed job, then removes the job
// record and both files. A later poll for the same id returns 404.
func (h *JobHandler) Download(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.manager.Release(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) || errors.Is(err, domain.ErrJobNotCompleted) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "result not ready or job not found"})
			return
		}
		h.logger.Error("Failed to release job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: domain.ErrStorageUnavailable.Error()})
		return
	}

	// The record is gone at this point; whatever happens next, the
	// files are reclaimed after the response is written.
	defer h.manager.CleanupFiles(job)

	f, size, err := h.files.Open(job.ResultLocation)
	if err != nil {
		// Lost the race for the file itself.
		h.logger.Warn("Artifact no longer accessible",
			slog.String("job_id", jobID),
			slog.String("result", job.ResultLocation),
		)
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "result file not found"})
		return
	}
	defer f.Close()

	c.DataFromReader(
		http.StatusOK,
		size,
		"application/octet-stream",
		f,
		map[string]string{
			"Content-Disposition": fmt.Sprintf(`attachment; filename="%s.obj"`, job.ID),
		},
	)
}
