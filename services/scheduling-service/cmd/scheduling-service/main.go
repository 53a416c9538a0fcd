package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/catalog"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/payment"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage/pgstore"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/templatecache"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/templates"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	requiresApproval, err := config.Bool("PUBLIC_BOOKING_REQUIRES_APPROVAL", true)
	if err != nil {
		panic(err)
	}
	cacheTTL, err := config.Duration("TEMPLATE_CACHE_TTL", templatecache.DefaultTTL)
	if err != nil {
		panic(err)
	}
	rateLimit, err := config.Int("PUBLIC_RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	brokers := config.List("KAFKA_BROKERS")
	clk := clock.WallClock

	readyChecks := []runtime.ReadyCheck{}

	// Storage: postgres when a DATABASE_URL is configured, memory otherwise.
	var (
		store      storage.Store
		pool       *db.Pool
		dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger)
		recorder   inbox.Recorder    = inbox.NewMemory()
	)
	backend := strings.ToLower(config.String("STORAGE_BACKEND", ""))
	if backend == "" {
		backend = "memory"
		if config.String("DATABASE_URL", "") != "" {
			backend = "postgres"
		}
	}
	switch backend {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 10)
		if err != nil {
			panic(err)
		}
		pool, err = db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		runMigrations, err := config.Bool("RUN_MIGRATIONS", false)
		if err != nil {
			panic(err)
		}
		if runMigrations {
			if err := migrations.Apply(ctx, pool); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
			logger.Info("migrations applied")
		}

		store = pgstore.New(pool)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		outboxRepo := outbox.NewRepository(pool)
		dispatcher = outbox.NewDispatcher(pool, outboxRepo, logger)
		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)
		recorder = inbox.NewRepository(pool)
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		store = storage.NewMemory()
	default:
		logger.Error("unknown storage backend", "backend", backend)
		panic("STORAGE_BACKEND must be postgres or memory")
	}

	// Redis backs the template cache and the public rate limiter when present.
	var (
		templateSource availability.TemplateSource = store
		invalidator    templates.Invalidator
		limiter        httpx.Limiter = httpx.NewMemoryLimiter(rateLimit, time.Minute)
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		cache := templatecache.New(rdb, store, cacheTTL, logger)
		templateSource = cache
		invalidator = cache
		limiter = httpx.NewRedisLimiter(rdb, rateLimit, time.Minute, "slotbook:ratelimit")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	if len(brokers) > 0 {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		catalogSync := catalog.NewSync(store, logger)
		eventConsumer := consumer.New(logger, recorder, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  catalog.Topics(),
		}, catalogSync.Handle)
		go eventConsumer.Run(ctx)
	}

	var payments payment.Authorizer = payment.Opaque{}
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		payments = payment.NewStripe(key)
	}

	m := metrics.New()
	engine := availability.NewEngine(templateSource, store)
	arbiter := booking.NewArbiter(booking.Deps{
		Store:      store,
		Payments:   payments,
		Dispatcher: dispatcher,
		Leads:      notify.NewEventLeadRecorder(dispatcher, clk.Now),
		Metrics:    m,
		Clock:      clk,
		Logger:     logger,
	}, booking.Config{PublicRequiresApproval: requiresApproval})
	manager := lifecycle.NewManager(store, dispatcher, m, clk, logger)
	templateService := templates.New(store, invalidator, clk, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", m.Handler())
	h := handlers.New(engine, arbiter, manager, templateService, logger)
	h.Register(mux, httpx.RateLimit(limiter, logger))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, err := startHealthServer(ctx, logger, config.String("GRPC_PORT", "9090"), store)
	if err != nil {
		logger.Error("grpc health server failed", "err", err)
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "storage", backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("http server stopped")
}
