package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"fulfillment/internal/handler"
	"fulfillment/internal/middleware"
	internalRedis "fulfillment/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	FulfillmentHandler *handler.FulfillmentHandler
	TrackingHandler    *handler.TrackingHandler
	HealthHandler      *handler.HealthHandler
	ResponseCache      internalRedis.ResponseCacheInterface
	Locks              internalRedis.LockStoreInterface
	NewRelicApp        *newrelic.Application
	Logger             *slog.Logger
	CORSOrigin         string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.CORSOrigin))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.ResponseCache != nil && deps.Locks != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.Locks, deps.Logger))
	}

	router.GET("/health", deps.HealthHandler.Health)

	porter := router.Group("/api/porter")
	{
		porter.POST("/get_quote", deps.FulfillmentHandler.GetQuote)
		porter.POST("/create_order", deps.FulfillmentHandler.CreateOrder)
		porter.GET("/track_order/:order_id", deps.FulfillmentHandler.TrackOrder)
		porter.GET("/track_order/:order_id/stream", deps.TrackingHandler.Stream)
		porter.POST("/checkout", deps.FulfillmentHandler.Checkout)
		porter.POST("/verify", deps.FulfillmentHandler.Verify)
	}

	return router
}
