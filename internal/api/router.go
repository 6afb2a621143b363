package api

import (
	"github.com/gin-gonic/gin"

	"github.com/avelar/docindex/internal/api/handler"
	"github.com/avelar/docindex/internal/api/middleware"
	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(indexing *service.IndexingService, log *logger.Logger, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(indexing)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", jobHandler.CreateJob)
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetProgress)
		v1.POST("/jobs/:id/cancel", jobHandler.Cancel)
	}

	return r
}
