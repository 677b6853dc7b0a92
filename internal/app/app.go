package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/catalog"
	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/checkout"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/events"
	"github.com/xenking/techstore/internal/handler"
	"github.com/xenking/techstore/internal/storage/postgres"
	"github.com/xenking/techstore/internal/storage/redis"
	"github.com/xenking/techstore/pkg/health"
	"github.com/xenking/techstore/pkg/httpmiddleware"
)

const serviceName = "techstore-api"

// Telemetry provides the OpenTelemetry providers. Implemented by
// *app.Telemetry.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

var _ Telemetry = (*app.Telemetry)(nil)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("session_backend", cfg.Session.Backend),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Check{
		Name: "postgres",
		Kind: health.Readiness,
		Func: health.PingCheck(pool),
	})
	healthSvc.Register(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	voucherRepo := postgres.NewVoucherRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	vouchers := catalog.NewCachedSource(voucherRepo, cfg.Catalog.TTL, cfg.Catalog.MaxStale)

	sessions, closeSessions, err := newSessionStore(ctx, cfg.Session, healthSvc)
	if err != nil {
		return err
	}
	defer closeSessions()

	publisher, closePublisher := newPublisher(cfg.Kafka)
	defer func() {
		if err := closePublisher(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	// Domain services.
	orderService := order.NewService(productRepo, orderRepo, publisher)
	checkoutService := checkout.NewService(sessions, vouchers, orderService, cfg.Session.TTL)

	// HTTP handlers.
	h, err := handler.New(handler.Deps{
		Catalog:  vouchers,
		Vouchers: voucherRepo,
		Cache:    vouchers,
		Products: productRepo,
		Orders:   orderService,
		Checkout: checkoutService,
		Auth:     auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
		Meter:    m.MeterProvider().Meter(serviceName),
	})
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	router := handler.NewRouter(h, healthSvc,
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Accept-Language", handler.HeaderAPIKey, httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newSessionStore builds the configured checkout session store. The redis
// backend also registers a readiness check.
func newSessionStore(ctx context.Context, cfg SessionConfig, hc *health.Health) (checkout.Store, func(), error) {
	if cfg.Backend != SessionRedis {
		store := checkout.NewMemoryStore()
		go store.RunSweeper(ctx, time.Minute)
		return store, func() {}, nil
	}

	client, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}
	hc.Register(health.Check{
		Name: "redis",
		Kind: health.Readiness,
		Func: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	})
	return redis.NewSessionStore(client), func() { _ = client.Close() }, nil
}

// newPublisher returns the Kafka publisher when brokers are configured and a
// no-op otherwise.
func newPublisher(cfg KafkaConfig) (order.Publisher, func() error) {
	if len(cfg.Brokers) == 0 {
		return events.Noop{}, func() error { return nil }
	}
	k := events.NewKafka(events.NewKafkaWriter(cfg.Brokers, cfg.Topic))
	return k, k.Close
}
