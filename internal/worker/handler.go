package worker

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidmesh/vidmesh-be/internal/api/dto"
	"github.com/vidmesh/vidmesh-be/internal/api/router"
)

// SetupRouter configures the worker's HTTP surface: /convert and /health.
func SetupRouter(svc *Service, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(router.LoggerMiddleware(logger))

	// POST /convert - accept a conversion request and return immediately
	r.POST("/convert", func(c *gin.Context) {
		var req ConversionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Error("Invalid conversion request", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid conversion request"})
			return
		}

		if !svc.Ready() {
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "converter is not loaded, worker is not ready"})
			return
		}

		if err := svc.Enqueue(req); err != nil {
			if errors.Is(err, ErrQueueFull) {
				c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "conversion queue full"})
				return
			}
			logger.Error("Failed to queue conversion",
				slog.String("job_id", req.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message": "conversion accepted and running in the background",
			"job_id":  req.JobID,
		})
	})

	// GET /health - readiness including converter state
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"service":         "vidmesh-worker-service",
			"converter_ready": svc.Ready(),
		})
	})

	return r
}
