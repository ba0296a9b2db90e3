package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidmesh/vidmesh-be/internal/api/handler"
	"github.com/vidmesh/vidmesh-be/internal/metrics"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "vidmesh-api-service",
		})
	})

	metrics.MustRegister()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/upload - Submit a video for conversion
		v1.POST("/upload", jobHandler.Upload)

		// POST /api/v1/webhook/complete - Worker completion report
		v1.POST("/webhook/complete", jobHandler.CompleteWebhook)

		// GET /api/v1/status/:job_id - Poll conversion progress
		v1.GET("/status/:job_id", jobHandler.Status)

		// GET /api/v1/download/:job_id - Fetch the artifact and release the job
		v1.GET("/download/:job_id", jobHandler.Download)
	}

	return r
}
