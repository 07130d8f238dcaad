package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"donation/internal/handler"
	"donation/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	CheckoutHandler *handler.CheckoutHandler
	HealthHandler   *handler.HealthHandler
	RedisClient     *redis.Client // Optional: enables Idempotency-Key replay
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.OrderAttributes())
	}

	router.GET("/health", deps.HealthHandler.Health)

	checkout := router.Group("/checkout")
	{
		checkout.GET("/config", deps.HealthHandler.Config)
		checkout.GET("/sessions/:orderId", deps.CheckoutHandler.GetSession)

		mutating := checkout.Group("", middleware.IdempotencyMiddleware(deps.RedisClient))
		{
			mutating.POST("/ticket", deps.CheckoutHandler.RequestTicket)
			mutating.POST("/submitted", deps.CheckoutHandler.MarkSubmitted)
			mutating.POST("/cancel", deps.CheckoutHandler.Cancel)
			mutating.POST("/receipt", deps.CheckoutHandler.Receipt)
			mutating.POST("/complete", deps.CheckoutHandler.Complete)
		}
	}

	return router
}
