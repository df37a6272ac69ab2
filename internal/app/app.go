package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/commerce-engine/internal/auth"
	"github.com/utafrali/commerce-engine/internal/config"
	"github.com/utafrali/commerce-engine/internal/discount"
	"github.com/utafrali/commerce-engine/internal/event"
	handler "github.com/utafrali/commerce-engine/internal/handler/http"
	"github.com/utafrali/commerce-engine/internal/notify"
	"github.com/utafrali/commerce-engine/internal/repository"
	"github.com/utafrali/commerce-engine/internal/repository/memory"
	"github.com/utafrali/commerce-engine/internal/repository/postgres"
	redisrepo "github.com/utafrali/commerce-engine/internal/repository/redis"
	"github.com/utafrali/commerce-engine/internal/service"
	"github.com/utafrali/commerce-engine/internal/totals"
	"github.com/utafrali/commerce-engine/internal/webhook"
	"github.com/utafrali/commerce-engine/migrations"
	"github.com/utafrali/commerce-engine/pkg/database"
	"github.com/utafrali/commerce-engine/pkg/health"
	"github.com/utafrali/commerce-engine/pkg/httpclient"
	pkgkafka "github.com/utafrali/commerce-engine/pkg/kafka"
	"github.com/utafrali/commerce-engine/pkg/lock"
	"github.com/utafrali/commerce-engine/pkg/middleware"
	"github.com/utafrali/commerce-engine/pkg/tracing"
)

const serviceName = "commerce-engine"

// App wires together all dependencies and runs the commerce engine.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	transfers      *service.TransferService
	limiter        *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// repositories groups the storage adapters selected by configuration.
type repositories struct {
	regions   repository.RegionRepository
	variants  repository.VariantRepository
	shipping  repository.ShippingOptionRepository
	giftCards repository.GiftCardRepository
	discounts repository.DiscountRepository
	carts     repository.CartRepository
	payments  repository.PaymentSessionRepository
	orders    repository.OrderRepository
	transfers repository.TransferRequestRepository
	ledger    repository.EventLedger
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize Redis client.
	if cfg.NeedsRedis() {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	repos, err := a.initStorage(ctx, healthHandler)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	// Initialize Kafka producer.
	var publisher pkgkafka.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	notifier, err := a.newNotifier(publisher)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.LockDriver == config.DriverRedis {
		locker = lock.NewRedisLocker(a.rdb, cfg.LockTTL(), cfg.LockWait(), a.logger)
	}

	registry, err := webhook.NewRegistryFromSecrets(cfg.WebhookSecrets, cfg.StripeTolerance())
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("build webhook providers: %w", err)
	}
	logger.Info("webhook providers registered", slog.Any("providers", registry.Codes()))

	// Build the dependency graph.
	cartService := service.NewCartService(service.CartDeps{
		Carts:     repos.carts,
		Regions:   repos.regions,
		Variants:  repos.variants,
		Shipping:  repos.shipping,
		GiftCards: repos.giftCards,
		Payments:  repos.payments,
		Discounts: discount.NewRuleEvaluator(repos.discounts, time.Now),
		Locker:    locker,
		Producer:  eventProducer,
		Tax:       totals.RegionRateTax(cfg.TaxRates),
	}, logger, cfg.CartTTL())

	orderService := service.NewOrderService(repos.orders, repos.discounts, cartService, logger)

	a.transfers = service.NewTransferService(service.TransferDeps{
		Orders:    repos.orders,
		Transfers: repos.transfers,
		Locker:    locker,
		Notifier:  notifier,
		Producer:  eventProducer,
		Tokens:    auth.NewTokenManager(cfg.TransferTokenSecret),
	}, logger, cfg.TransferTTL())

	webhookService := service.NewWebhookService(service.WebhookDeps{
		Providers: registry,
		Payments:  repos.payments,
		Ledger:    repos.ledger,
		Locker:    locker,
		Producer:  eventProducer,
		Readiness: cartService,
	}, logger)

	// Kafka event consumers.
	if cfg.KafkaEnabled {
		a.consumers = a.newConsumers(event.NewConsumer(orderService, logger))
	}

	// HTTP router.
	a.limiter = middleware.NewRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst, logger)
	router := handler.NewRouter(handler.Services{
		Carts:     cartService,
		Prices:    service.NewPriceService(repos.regions, repos.variants),
		Orders:    orderService,
		Transfers: a.transfers,
		Webhooks:  webhookService,
	}, healthHandler, a.limiter, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// initStorage connects the configured storage driver and returns its
// repositories.
func (a *App) initStorage(ctx context.Context, healthHandler *health.Handler) (*repositories, error) {
	cfg := a.cfg

	if cfg.StorageDriver == config.DriverMemory {
		a.logger.Warn("using in-memory storage with development seed data")
		repos := seedMemoryRepositories()
		if cfg.LedgerDriver == config.DriverRedis {
			repos.ledger = redisrepo.NewEventLedger(a.rdb, cfg.LedgerRetention())
		}
		return repos, nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repos := &repositories{
		regions:   postgres.NewRegionRepository(pool),
		variants:  postgres.NewVariantRepository(pool),
		shipping:  postgres.NewShippingOptionRepository(pool),
		giftCards: postgres.NewGiftCardRepository(pool),
		discounts: postgres.NewDiscountRepository(pool),
		carts:     redisrepo.NewCartRepository(a.rdb, cfg.CartTTL()),
		payments:  postgres.NewPaymentSessionRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
		transfers: postgres.NewTransferRequestRepository(pool),
	}
	switch cfg.LedgerDriver {
	case config.DriverRedis:
		repos.ledger = redisrepo.NewEventLedger(a.rdb, cfg.LedgerRetention())
	case config.DriverMemory:
		repos.ledger = memory.NewEventLedger()
	default:
		repos.ledger = postgres.NewEventLedger(pool)
	}
	return repos, nil
}

// newNotifier builds the configured notification channel.
func (a *App) newNotifier(publisher pkgkafka.Publisher) (notify.Notifier, error) {
	switch a.cfg.Notifier {
	case config.NotifierKafka:
		return notify.NewKafkaNotifier(publisher, a.logger), nil
	case config.NotifierHTTP:
		client := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), a.cfg.CircuitBreaker(), a.logger)
		return notify.NewHTTPNotifier(client, a.cfg.NotificationServiceURL), nil
	case config.NotifierLog:
		return notify.NewLogNotifier(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", a.cfg.Notifier)
	}
}

// newConsumers subscribes to order.created. Duplicate deliveries are skipped
// through the idempotency store, and poison messages go to the DLQ.
func (a *App) newConsumers(consumer *event.Consumer) []*pkgkafka.Consumer {
	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	if a.rdb != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.rdb, "engine:processed:", 7*24*time.Hour)
	}
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)

	orderCreated := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.OrderCreatedGroupID,
		Topic:    event.TopicOrderCreated,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(store, consumer.HandleOrderCreated, a.logger), a.dlq, a.logger)

	return []*pkgkafka.Consumer{orderCreated}
}

// Run starts the HTTP server, Kafka consumers and the transfer sweeper, then
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start Kafka consumers.
	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go a.sweepTransfers(ctx)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// sweepTransfers expires pending transfer requests older than their TTL.
func (a *App) sweepTransfers(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TransferSweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.transfers.ExpireStale(ctx, a.cfg.TransferTTL())
			if err != nil {
				a.logger.Error("transfer sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("expired stale transfer requests", slog.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.limiter.Close()

	// Close Kafka consumers.
	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		}
	}

	// Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.closeStores()

	a.logger.Info("application shutdown complete")
	return nil
}

// closeStores closes the PostgreSQL pool and Redis client, if open.
func (a *App) closeStores() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}
