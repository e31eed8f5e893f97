package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/listproxy/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoints
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)

		home := api.Group("/home")
		{
			home.GET("/feed", handler.GetFeed)
			home.GET("/items", handler.GetItems)
			home.GET("/search", handler.Search)
		}
	}

	// Proxied resources are served same-origin, outside the API group
	router.GET(cfg.Proxy.ResourceEndpoint, handler.GetResource)

	return router
}
