package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginhandler "mongo-user-service/internal/adapter/gin/handler"
	"mongo-user-service/internal/adapter/gin/middleware"
	ginrouter "mongo-user-service/internal/adapter/gin/router"
	"mongo-user-service/internal/config"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	cfg *config.Config,
	handler *ginhandler.UserHandler,
	rateLimiter *middleware.RateLimiter,
	health ginrouter.HealthReporter,
	l *zap.Logger,
) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := ginrouter.SetupRouter(ginrouter.Options{
		UserHandler:    handler,
		RateLimiter:    rateLimiter,
		Health:         health,
		SwaggerEnabled: cfg.App.SwaggerEnabled,
		ServiceName:    cfg.Logger.ServiceName,
		Log:            l,
	})

	addr := ":" + cfg.App.HTTPPort
	l.Info("Gin REST API configured", zap.String("address", addr))
	if cfg.App.SwaggerEnabled {
		l.Info("Swagger UI available at", zap.String("url", "http://localhost"+addr+"/swagger/index.html"))
	}

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
