package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/dto"
)

// CompleteWebhook handles POST /api/v1/webhook/complete
// Inbound completion report from the worker. Delivery is at-least-once,
// so the handler acknowledges duplicates for already-terminal jobs.
func (h *JobHandler) CompleteWebhook(c *gin.Context) {
	var payload dto.CompletionCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("Invalid webhook payload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid webhook payload"})
		return
	}

	h.logger.Info("Completion webhook received",
		slog.String("job_id", payload.JobID),
		slog.String("result", payload.ResultLocation),
		slog.String("worker_error", payload.Error),
	)

	err := h.manager.HandleCallback(c.Request.Context(), payload.JobID, payload.ResultLocation, payload.Error)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
		case errors.Is(err, domain.ErrInvalidResult):
			// The job has been forced to failed; tell the worker its
			// report was unusable.
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid result location from worker"})
		default:
			h.logger.Error("Failed to apply completion callback",
				slog.String("job_id", payload.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: domain.ErrStorageUnavailable.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
}
