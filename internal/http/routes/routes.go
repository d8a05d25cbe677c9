package routes

import (
	"github.com/Dhoini/workshop-relay/internal/app"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	// Промежуточное ПО для всех запросов
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())
	router.Use(app.CORSMiddleware)

	router.GET("/health", app.HealthHandler.HealthCheck)
	router.GET("/metrics", app.HealthHandler.Metrics())

	// Вебхуки, подпись/валидация внутри обработчиков
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", app.WebhookHandler.HandleStripeWebhook)
		webhooks.POST("/kajabi", app.ProvisioningHandler.HandleKajabiWebhook)
	}

	api := router.Group("/api/v1")
	{
		// Публичные маршруты, вызываются со страницы успешной оплаты
		api.POST("/notifications", app.AuthMiddleware.OptionalAuth(), app.NotificationHandler.Notify)
		api.POST("/webhook-proxy", app.NotificationHandler.Proxy)

		// Защищенные маршруты (требуют аутентификации)
		auth := api.Group("")
		auth.Use(app.AuthMiddleware.RequireAuth())
		{
			auth.POST("/checkout", app.PaymentHandler.CreateCheckout)
			auth.GET("/orders", app.PaymentHandler.ListOrders)
		}
	}

	log.Infow("API routes successfully configured")
}
