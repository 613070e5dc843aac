package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/coursegen/internal/api/handler"
	"github.com/timmy/coursegen/internal/api/middleware"
	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/kvstore"
	"github.com/timmy/coursegen/internal/queue"
	"github.com/timmy/coursegen/internal/storage"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(q queue.Queue, store kvstore.Store, objects storage.ObjectStorage, cfg *config.ServerConfig) *gin.Engine {
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
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}))

	healthHandler := handler.NewHealthHandler(store)
	jobHandler := handler.NewJobHandler(q, objects)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		jobs.POST("/curriculum", jobHandler.CreateCurriculumJob)
		jobs.POST("/chapter", jobHandler.CreateChapterJob)
		jobs.GET("/:id", jobHandler.GetJob)
		jobs.GET("/:id/download", jobHandler.DownloadJob)
	}

	return r
}
