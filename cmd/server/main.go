package main

import (
	"context"
	"errors"
	"fmt"
	"go-gin-seat-booking/config"
	"go-gin-seat-booking/internal/cache"
	"go-gin-seat-booking/internal/clock"
	"go-gin-seat-booking/internal/database"
	"go-gin-seat-booking/internal/handler"
	"go-gin-seat-booking/internal/middleware"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/notification"
	"go-gin-seat-booking/internal/payment"
	"go-gin-seat-booking/internal/queue"
	"go-gin-seat-booking/internal/repository"
	"go-gin-seat-booking/internal/service"
	"go-gin-seat-booking/internal/worker"
	"go-gin-seat-booking/pkg/logger"
	"go-gin-seat-booking/pkg/telemetry"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		logger.L.Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	log := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		ServiceName:   cfg.Telemetry.ServiceName,
		CollectorAddr: cfg.Telemetry.CollectorAddr,
		SampleRatio:   cfg.Telemetry.SampleRatio,
	}); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	defer rdb.Close()

	saleQueue, err := newSaleQueue(cfg.Notification, rdb)
	if err != nil {
		return fmt.Errorf("init sale queue: %w", err)
	}
	defer saleQueue.Close()

	gateway, returns, webhooks, err := newGateway(cfg.Payment)
	if err != nil {
		return fmt.Errorf("init payment gateway: %w", err)
	}

	// services
	clk := clock.NewSystem()
	holdService := service.NewHoldService(cache.NewRedisSeatHoldStore(rdb), clk, cfg.Booking.HoldTTL)
	checkoutService := service.NewCheckoutService(
		cache.NewRedisCheckoutSessionStore(rdb),
		holdService,
		gateway,
		clk,
		service.CheckoutConfig{SessionTTL: cfg.Booking.SessionTTL, ReturnURL: cfg.Booking.ReturnURL},
	)
	settlementService := service.NewSettlementService(
		repository.NewTxManager(pool),
		repository.NewSeatRepository(pool),
		repository.NewSaleRepository(pool),
		repository.NewLoyaltyRepository(),
		repository.NewCatalogRepository(),
		checkoutService,
		holdService,
		saleQueue,
		clk,
		model.LoyaltyPolicy{
			PointsPerCurrencyUnit: cfg.Loyalty.PointsPerCurrencyUnit,
			TierUpgradeThreshold:  cfg.Loyalty.TierUpgradeThreshold,
			TierID:                cfg.Loyalty.TierID,
		},
	)
	expiryService := service.NewExpiryService(checkoutService, holdService)
	paymentService := service.NewPaymentService(settlementService, expiryService)

	// notification worker
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	notifier := worker.NewNotificationWorker(notification.NewLogNotifier(), saleQueue)
	if err := notifier.Start(workerCtx); err != nil {
		return fmt.Errorf("start notification worker: %w", err)
	}

	// routes
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), telemetry.TracingMiddleware())

	api := router.Group("/api/v1")
	handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}).RegisterRoutes(api)
	handler.NewPaymentHandler(paymentService, returns, webhooks).RegisterRoutes(api)

	identity := middleware.Identity(middleware.IdentityConfig{JWTSecret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer})
	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET not set, trusting X-Actor-ID headers")
	}
	authed := api.Group("", identity)
	handler.NewHoldHandler(holdService).RegisterRoutes(authed)
	handler.NewCheckoutHandler(checkoutService, expiryService).RegisterRoutes(authed)

	staff := api.Group("", identity, middleware.RequireStaff(), middleware.Idempotency(middleware.IdempotencyConfig{Redis: rdb}))
	handler.NewCounterHandler(settlementService).RegisterRoutes(staff)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", srv.Addr), zap.String("gateway", gateway.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	cancelWorker()
	notifier.Wait()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

func newSaleQueue(cfg config.NotificationConfig, rdb *redis.Client) (queue.SaleEventQueue, error) {
	switch cfg.Backend {
	case "redis":
		hostname, _ := os.Hostname()
		return queue.NewRedisStreamSaleQueue(rdb, fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]), nil)
	case "rabbitmq":
		return queue.NewRabbitMQSaleQueue(queue.RabbitMQSaleQueueConfig{
			URL:   cfg.RabbitMQURL,
			Queue: cfg.RabbitMQQueue,
		})
	case "kafka":
		return queue.NewKafkaSaleQueue(queue.KafkaSaleQueueConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Group:   cfg.KafkaGroup,
		})
	default:
		return queue.NewMemorySaleQueue(cfg.BufferSize), nil
	}
}

// newGateway 依設定建立付款閘道與對應的回呼解析器
func newGateway(cfg config.PaymentConfig) (payment.Gateway, payment.ReturnParser, payment.WebhookParser, error) {
	switch cfg.Gateway {
	case "stripe":
		g, err := payment.NewStripeGateway(payment.StripeGatewayConfig{
			SecretKey:     cfg.StripeKey,
			WebhookSecret: cfg.StripeWebhook,
			Currency:      cfg.Currency,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return g, nil, g, nil
	default:
		g, err := payment.NewHostedGateway(payment.HostedGatewayConfig{
			BaseURL: cfg.HostedBaseURL,
			Secret:  cfg.HostedSecret,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return g, g, nil, nil
	}
}
