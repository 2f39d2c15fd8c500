package api

import (
	"github.com/flexprice/parkingpermits/internal/api/cron"
	v1 "github.com/flexprice/parkingpermits/internal/api/v1"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/rest/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health    *v1.HealthHandler
	Permit    *v1.PermitHandler
	Change    *v1.ChangeHandler
	Extension *v1.ExtensionHandler
	Webhook   *v1.WebhookHandler

	CronPermit *cron.PermitHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.SentryMiddleware(cfg),
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1Group := router.Group("/v1")

	// Provider webhooks authenticate with the shared webhook secret
	webhooks := v1Group.Group("/webhooks/provider")
	webhooks.Use(middleware.WebhookAuthMiddleware(cfg, logger))
	{
		webhooks.POST("/right-of-purchase", handlers.Webhook.RightOfPurchase)
		webhooks.POST("/events", handlers.Webhook.HandleProviderEvents)
		webhooks.POST("/:channel", handlers.Webhook.HandleProviderWebhook)
	}

	// Everything else sits behind the gateway
	private := v1Group.Group("")
	private.Use(middleware.GuestAuthenticateMiddleware)
	registerPermitRoutes(private, handlers)

	// Cron routes
	// TODO: Add authentication for cron routes
	cronGroup := private.Group("/cron")
	{
		permitGroup := cronGroup.Group("/permits")
		{
			permitGroup.POST("/cancel-unpaid", handlers.CronPermit.CancelUnpaid)
			permitGroup.POST("/expire", handlers.CronPermit.ExpirePermits)
		}
	}

	return router
}

func registerPermitRoutes(router *gin.RouterGroup, handlers Handlers) {
	permits := router.Group("/permits")
	{
		permits.POST("", handlers.Permit.CreatePermit)
		permits.GET("/:id", handlers.Permit.GetPermit)
		permits.GET("/:id/price", handlers.Permit.GetPriceQuote)
		permits.POST("/:id/checkout", handlers.Permit.Checkout)
		permits.POST("/:id/cancel", handlers.Permit.CancelPermit)
		permits.POST("/:id/end", handlers.Permit.EndPermit)

		permits.POST("/:id/vehicle", handlers.Change.ChangeVehicle)
		permits.POST("/:id/address", handlers.Change.ChangeAddress)
		permits.POST("/:id/temporary-vehicles", handlers.Change.AddTemporaryVehicle)
		permits.DELETE("/:id/temporary-vehicles", handlers.Change.RemoveTemporaryVehicle)

		permits.POST("/:id/extensions", handlers.Extension.RequestExtension)
		permits.GET("/:id/extensions", handlers.Extension.ListExtensions)
	}

	extensions := router.Group("/extensions")
	{
		extensions.POST("/:id/approve", handlers.Extension.ApproveExtension)
		extensions.POST("/:id/reject", handlers.Extension.RejectExtension)
	}

	customers := router.Group("/customers")
	{
		customers.GET("/:id/permits", handlers.Permit.ListCustomerPermits)
	}
}
