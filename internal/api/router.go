package api

import (
	"github.com/fennelouski/cardoncue/internal/api/handler"
	"github.com/fennelouski/cardoncue/internal/api/middleware"
	"github.com/fennelouski/cardoncue/internal/config"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/service"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	queue *service.QueueService,
	processor *service.Processor,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	importHandler := handler.NewImportHandler(queue, processor, log)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Intake and status are open; auth proper lives outside this core.
		v1.POST("/import/jobs", importHandler.Enqueue)
		v1.POST("/import/ensure", importHandler.Ensure)
		v1.GET("/import/status", importHandler.Status)

		// Trigger and removal require the scheduler's shared secret.
		secured := v1.Group("", middleware.TriggerAuth(cfg.Scheduler.TriggerToken))
		{
			secured.POST("/import/process", importHandler.Process)
			secured.DELETE("/import/jobs/:id", importHandler.Remove)
			secured.DELETE("/import/completed", importHandler.ClearCompleted)
		}
	}

	return r
}
