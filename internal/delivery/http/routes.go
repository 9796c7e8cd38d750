package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basketscout/backend/config"
	"github.com/basketscout/backend/pkg/logger"
	"github.com/basketscout/backend/pkg/metrics"
)

// SetupRouter creates and configures the Gin router. gatherer serves
// /metrics; recorder may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, gatherer prometheus.Gatherer, recorder *metrics.Recorder) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.Named("http")
	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log, recorder))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		stores := v1.Group("/stores")
		{
			stores.POST("/resolve", handler.ResolveStores)
		}
	}

	return router
}
