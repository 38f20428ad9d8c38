package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"mongo-user-service/api"
	"mongo-user-service/internal/adapter/gin/handler"
	"mongo-user-service/internal/adapter/gin/middleware"
)

// SwaggerSpecPath serves the OpenAPI document used by the Swagger UI.
const SwaggerSpecPath = "/api/docs/users.swagger.json"

// HealthReporter reports whether the service dependencies are reachable.
type HealthReporter interface {
	Healthy() bool
}

// Options holds the dependencies of the router. RateLimiter and Health are
// optional.
type Options struct {
	UserHandler    *handler.UserHandler
	RateLimiter    *middleware.RateLimiter
	Health         HealthReporter
	SwaggerEnabled bool
	ServiceName    string
	Log            *zap.Logger
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(opts.Log))
	router.Use(middleware.Logger(opts.Log))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		if opts.Health != nil && !opts.Health.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": opts.ServiceName,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": opts.ServiceName,
		})
	})

	if opts.SwaggerEnabled {
		router.GET(SwaggerSpecPath, func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", api.SwaggerJSON)
		})
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(SwaggerSpecPath))))
	}

	users := router.Group(handler.UsersPath)
	if opts.RateLimiter != nil {
		users.Use(opts.RateLimiter.Handler())
	}
	{
		h := opts.UserHandler
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.POST("/search", h.SearchUsers)
		users.GET("/:id", h.GetUser)
		users.PUT("/:username", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}

	return router
}
