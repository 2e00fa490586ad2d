package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labdigitizer/internal/config"
	"labdigitizer/internal/handler"
	"labdigitizer/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.ServerConfig,
	extractH *handler.ExtractHandler,
	healthH *handler.HealthHandler,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	v1.POST("/extract", extractH.Extract)

	return r
}
