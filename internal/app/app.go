package app

import (
	"github.com/Dhoini/workshop-relay/internal/config"
	"github.com/Dhoini/workshop-relay/internal/http/handlers"
	"github.com/Dhoini/workshop-relay/internal/middleware"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Services collects what the HTTP layer needs from the service layer
type Services struct {
	Relay            *services.Relay
	Provisioner      *services.Provisioner
	Proxy            *services.WebhookProxy
	Checkout         *services.CheckoutService
	Recorder         *services.Recorder
	SubscriptionSync *services.SubscriptionSync

	// Notification receives every relayed purchase; Provisioning is optional.
	// Direct serves success page retries and falls back to Notification.
	Notification services.Destination
	Provisioning services.Destination
	Direct       services.Destination

	DB       handlers.Pinger
	Registry *prometheus.Registry
}

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config              *config.Config
	WebhookHandler      *handlers.WebhookHandler
	ProvisioningHandler *handlers.ProvisioningHandler
	NotificationHandler *handlers.NotificationHandler
	PaymentHandler      *handlers.PaymentHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.JWTMiddleware
	LoggerMiddleware    gin.HandlerFunc
	CORSMiddleware      gin.HandlerFunc
	Logger              *logger.Logger
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(cfg *config.Config, svc Services, log *logger.Logger, validator middleware.TokenValidator) (*App, error) {
	destinations := []services.Destination{svc.Notification}
	if svc.Provisioning != nil {
		destinations = append(destinations, svc.Provisioning)
	}

	direct := svc.Direct
	if direct == nil {
		direct = svc.Notification
	}

	webhookHandler, err := handlers.NewWebhookHandler(
		cfg.Stripe.WebhookSecret,
		svc.Relay,
		svc.SubscriptionSync,
		destinations,
		log.With("handler", "stripe_webhook"),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:              cfg,
		WebhookHandler:      webhookHandler,
		ProvisioningHandler: handlers.NewProvisioningHandler(svc.Provisioner, log.With("handler", "kajabi_webhook")),
		NotificationHandler: handlers.NewNotificationHandler(svc.Relay, direct, svc.Proxy, log.With("handler", "notifications")),
		PaymentHandler:      handlers.NewPaymentHandler(svc.Checkout, svc.Recorder, log.With("handler", "payments")),
		HealthHandler:       handlers.NewHealthHandler(svc.DB, svc.Registry, log),
		AuthMiddleware:      middleware.NewJWTMiddleware(log, validator),
		LoggerMiddleware:    middleware.RequestLogger(log),
		CORSMiddleware:      middleware.CORS(cfg.App.AllowedOrigins),
		Logger:              log,
	}, nil
}
