package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Dhoini/workshop-relay/internal/app"
	"github.com/Dhoini/workshop-relay/internal/config"
	"github.com/Dhoini/workshop-relay/internal/db"
	"github.com/Dhoini/workshop-relay/internal/http/routes"
	"github.com/Dhoini/workshop-relay/internal/kafka"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/middleware"
	"github.com/Dhoini/workshop-relay/internal/notify"
	"github.com/Dhoini/workshop-relay/internal/repository"
	"github.com/Dhoini/workshop-relay/internal/retry"
	"github.com/Dhoini/workshop-relay/internal/services"
	"github.com/Dhoini/workshop-relay/internal/stripe"
	"github.com/Dhoini/workshop-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.New(logger.INFO).Fatalw("Failed to load configuration", "error", err)
	}

	log := initLogger(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Infow("Workshop relay starting up...", "env", cfg.App.Env)

	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is not set, checkout and orders endpoints will reject every request")
	}
	if cfg.Stripe.APIKey == "" {
		log.Warnw("Stripe API key is not set, customer lookups and checkout will fail")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключаемся к базе данных
	dbClient, err := db.NewDBClient(ctx, cfg.Database.DSN, cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer dbClient.Close()

	if cfg.Database.MigrateOnBoot {
		if err := db.MigrateUp(cfg.Database.DSN, log); err != nil {
			log.Fatalw("Failed to apply migrations", "error", err)
		}
	}

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry, log)

	users := repository.NewPostgresUserRepository(dbClient.DB, log)
	links := repository.NewPostgresCustomerLinkRepository(dbClient.DB, log)
	orders := repository.NewPostgresOrderRepository(dbClient.DB, log)
	subscriptions := repository.NewPostgresSubscriptionRepository(dbClient.DB, log)

	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, nil, log)

	// Кеш клиентов Stripe, если Redis доступен
	var customers repository.CustomerSource = stripeClient
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			cache := repository.NewRedisCacheRepository(redisClient, cfg.Redis.TTL, log)
			customers = repository.NewCachedCustomerSource(stripeClient, cache, log)
			log.Infow("Using cached customer lookups")
		}
	}

	// Kafka не обязательна, без брокеров события не публикуются
	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.EnsureTopics {
			if err := kafka.EnsureKafkaTopics(ctx, cfg.Kafka.Brokers, log); err != nil {
				log.Errorw("Failed to ensure Kafka topics", "error", err)
			}
		}
		p, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			producer = p
			defer func() {
				if err := producer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	dispatchers := newDispatchers(cfg, relayMetrics, log)

	resolver := services.NewResolver(users, customers, log)
	recorder := services.NewRecorder(orders, relayMetrics, log)
	relay := services.NewRelay(resolver, recorder, producer, relayMetrics, log)
	subscriptionSync := services.NewSubscriptionSync(stripeClient, subscriptions, log)

	var forward services.RawSender
	if dispatchers.forward != nil {
		forward = dispatchers.forward
	}
	provisioner := services.NewProvisioner(users, links, recorder, forward, producer, relayMetrics, services.ProvisionerConfig{
		DefaultAmount:   cfg.Checkout.DefaultAmount,
		DefaultCurrency: cfg.Checkout.Currency,
	}, log)

	svc := app.Services{
		Relay:            relay,
		Provisioner:      provisioner,
		Proxy:            services.NewWebhookProxy(dispatchers.proxy, dispatchers.fallbacks, log),
		Checkout:         services.NewCheckoutService(stripeClient, users, links, cfg.Checkout.PriceID, log),
		Recorder:         recorder,
		SubscriptionSync: subscriptionSync,
		Notification:     dispatchers.notification,
		Direct:           dispatchers.direct,
		DB:               dbClient,
		Registry:         registry,
	}
	if dispatchers.provisioning != nil {
		svc.Provisioning = dispatchers.provisioning
	}

	validator := &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}
	application, err := app.NewApp(cfg, svc, log, validator)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*dispatchBudget(cfg) + 10*time.Second, // notification + provisioning
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	// дожидаемся фоновой синхронизации подписок
	_ = subscriptionSync.Wait()

	log.Infow("Cleanup finished. Goodbye!")
}

type dispatcherSet struct {
	notification *notify.Dispatcher
	direct       *notify.Dispatcher
	provisioning *notify.Dispatcher
	forward      *notify.Dispatcher
	proxy        *notify.Dispatcher
	fallbacks    []services.Destination
}

// newDispatchers builds one dispatcher per configured destination. The proxy
// destinations are best effort and get a single attempt.
func newDispatchers(cfg *config.Config, m metrics.RelayMetrics, log *logger.Logger) dispatcherSet {
	client := &http.Client{}
	policy := retry.Policy{
		MaxAttempts:     cfg.Relay.MaxAttempts,
		InitialInterval: cfg.Relay.InitialBackoff,
		Multiplier:      2,
	}
	single := retry.Policy{MaxAttempts: 1}

	build := func(name, url, source string, p retry.Policy) *notify.Dispatcher {
		return notify.NewDispatcher(notify.Config{
			Name:    name,
			URL:     url,
			Source:  source,
			Policy:  p,
			Timeout: cfg.Relay.RequestTimeout,
		}, client, m, log)
	}

	set := dispatcherSet{
		notification: build("notification", cfg.Relay.NotificationURL, "stripe-webhook", policy),
		direct:       build("direct", cfg.Relay.NotificationURL, "success-page", policy),
		proxy:        build("proxy", cfg.Relay.NotificationURL, "webhook-proxy", single),
	}
	if cfg.Relay.ProvisioningURL != "" {
		set.provisioning = build("provisioning", cfg.Relay.ProvisioningURL, "stripe-webhook", policy)
	}
	if cfg.Relay.ForwardURL != "" {
		set.forward = build("forward", cfg.Relay.ForwardURL, "kajabi-webhook", policy)
	}
	for i, url := range cfg.Relay.ProxyFallbackURLs {
		set.fallbacks = append(set.fallbacks, build("proxy_fallback_"+strconv.Itoa(i), url, "webhook-proxy", single))
	}
	return set
}

// dispatchBudget is the longest a request can spend in one dispatch sequence
func dispatchBudget(cfg *config.Config) time.Duration {
	policy := retry.Policy{MaxAttempts: cfg.Relay.MaxAttempts, InitialInterval: cfg.Relay.InitialBackoff, Multiplier: 2}
	total := time.Duration(cfg.Relay.MaxAttempts) * cfg.Relay.RequestTimeout
	for _, d := range policy.Delays() {
		total += d
	}
	return total
}

func initLogger(level string) *logger.Logger {
	if os.Getenv("LOG_LEVEL") != "" {
		level = os.Getenv("LOG_LEVEL")
	}
	return logger.New(logger.ParseLevel(level))
}
