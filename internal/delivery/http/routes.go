package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/config"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/monitoring"
)

// SetupRouter creates and configures the Gin router.
// metrics may be nil, in which case /metrics is not exposed.
func SetupRouter(cfg *config.Config, handler *Handler, metrics *monitoring.Metrics, logger logrus.FieldLogger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = logging.Component(logger, "http")
	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware(metrics))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)

		limited := api.Group("")
		limited.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, metrics))
		{
			// Product analysis endpoints
			product := limited.Group("/product")
			{
				product.POST("", handler.SubmitProduct)
				product.GET("/:id/status", handler.ProductStatus)
				product.GET("/:id/stream", handler.StreamProduct)
			}

			// Brand-level ESG data
			limited.GET("/score", handler.BrandScore)
			limited.GET("/brands", handler.ListBrands)
			limited.GET("/categories", handler.ListCategories)
			limited.POST("/contribute", handler.Contribute)
		}
	}

	return router
}
