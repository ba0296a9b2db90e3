package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/internal/api/dto"
)

// Upload handles POST /api/v1/upload
// Accepts a multipart video, stages it, creates a job and triggers the
// conversion dispatch in the background. The client gets the job id
// immediately and polls for progress.
func (h *JobHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Error("Invalid upload request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "a video file is required in the 'file' field"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		h.logger.Warn("Rejected non-video upload",
			slog.String("content_type", contentType),
			slog.String("filename", fileHeader.Filename),
		)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid file type, please upload a video"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to read uploaded file"})
		return
	}
	defer src.Close()

	// The job record is created only after the file is safely staged:
	// a failed save must not leave a phantom processing job.
	inputPath, err := h.files.SaveUpload(fileHeader.Filename, src)
	if err != nil {
		h.logger.Error("Failed to stage uploaded video", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to save uploaded file"})
		return
	}

	job, err := h.manager.Create(c.Request.Context(), inputPath)
	if err != nil {
		// No job was created; drop the orphaned staging file.
		if rmErr := h.files.Remove(inputPath); rmErr != nil {
			h.logger.Error("Failed to drop staged upload", slog.Any("error", rmErr))
		}
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: domain.ErrStorageUnavailable.Error()})
		return
	}

	// Fire-and-forget: the conversion pipeline runs long after this
	// handler returns. The dispatcher owns retries and the terminal
	// failure fallback.
	go h.dispatcher.Dispatch(context.WithoutCancel(c.Request.Context()), job.ID, job.InputLocation)

	c.JSON(http.StatusOK, dto.UploadResponse{JobID: job.ID})
}
