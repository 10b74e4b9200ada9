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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/kasirkita/backend-kasir/internal/auth"
	"github.com/kasirkita/backend-kasir/internal/catalog"
	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/config"
	"github.com/kasirkita/backend-kasir/internal/db"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/health"
	"github.com/kasirkita/backend-kasir/internal/obs"
	"github.com/kasirkita/backend-kasir/internal/pos"
	"github.com/kasirkita/backend-kasir/internal/promo"
	"github.com/kasirkita/backend-kasir/internal/ratelimit"
	"github.com/kasirkita/backend-kasir/internal/receipt"
	"github.com/kasirkita/backend-kasir/internal/report"
	"github.com/kasirkita/backend-kasir/internal/security"
	"github.com/kasirkita/backend-kasir/internal/shift"
	"github.com/kasirkita/backend-kasir/internal/tasks"
	"github.com/kasirkita/backend-kasir/internal/tenant"
	"github.com/kasirkita/backend-kasir/internal/txn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kasir")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kasir-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	postgres, err := db.New(ctx, cfg.DatabaseURL, "kasir-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer postgres.Close()
	pool := postgres.Pool

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue client")
		}
	}()

	validate := validator.New()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalog.Store{Pool: pool},
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Service: catalogService, Validate: validate}

	promoService := &promo.Service{
		Store: promo.Store{Pool: pool},
		Cache: catalog.NewCache(redisClient, cfg.PromoCacheTTL),
	}
	promoHandler := &promo.Handler{Service: promoService, Validate: validate}

	bus := &events.Bus{
		Store:     events.Store{Pool: pool},
		Scheduler: tasks.Scheduler{Client: asynqClient},
	}

	shiftStore := shift.Store{Pool: pool}
	shiftHandler := &shift.Handler{
		Store:    shiftStore,
		Events:   bus,
		Validate: validate,
		Logger:   logger,
	}

	txnStore := txn.Store{Pool: pool, Shifts: shiftStore}
	txnHandler := &txn.Handler{Store: txnStore, Events: bus, Logger: logger}

	posService := &pos.Service{
		Sessions: &pos.SessionStore{Client: redisClient, TTL: cfg.SessionCartTTL},
		Catalog:  catalogService,
		Promos:   promoService,
		Shifts:   shiftStore,
		Txns:     txnStore,
		Events:   bus,
		TaxBps:   cfg.PricingTaxRateBPS,
		Logger:   logger,
	}
	posHandler := &pos.Handler{Service: posService, Validate: validate}

	company := receipt.CompanyInfo{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Phone:   cfg.CompanyPhone,
	}
	receiptHandler := &receipt.Handler{Store: txnStore, Company: company}

	reportService := &report.Service{
		Store: report.Store{Pool: pool},
		Cache: catalog.NewCache(redisClient, cfg.ReportCacheTTL),
	}
	reportHandler := &report.Handler{Service: reportService}

	authn := auth.Authenticator{Secret: []byte(cfg.AuthJWTSecret), Issuer: cfg.AuthIssuer}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	resolver := tenant.NewResolver(envOrDefault("TENANT_HEADER", ""), envOrDefault("TENANT_DEFAULT", ""))

	limiterMw, err := ratelimit.New(redisClient, int64(cfg.RateLimitPerMinute), time.Minute, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS", true), EnableHSTS: envBool("SECURE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: postgres, redis: redisClient},
		Timeout: 2 * time.Second,
	}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(resolver.Middleware)

		// anonymous endpoints bucket by IP
		v.Group(func(public chi.Router) {
			public.Use(limiterMw.Handler)

			public.Get("/products", catalogHandler.Products)
			public.Get("/products/{id}", catalogHandler.ProductDetail)
			public.Get("/products/barcode/{code}", catalogHandler.ProductByBarcode)

			public.Get("/promotions/active", promoHandler.Active)
			public.Post("/promotions/preview", promoHandler.Preview)
		})

		v.Group(func(protected chi.Router) {
			// authn first so the limiter buckets per cashier
			protected.Use(authn.Middleware)
			protected.Use(limiterMw.Handler)

			protected.Post("/products", catalogHandler.CreateProduct)
			protected.Put("/products/{id}", catalogHandler.UpdateProduct)

			protected.Post("/promotions", promoHandler.Create)
			protected.Delete("/promotions/{id}", promoHandler.Deactivate)

			protected.Route("/cart", func(c chi.Router) {
				c.Get("/", posHandler.Cart)
				c.Delete("/", posHandler.ClearCart)
				c.Post("/items", posHandler.AddItem)
				c.Patch("/items/{lineId}", posHandler.UpdateQty)
				c.Put("/items/{lineId}/discount", posHandler.SetLineDiscount)
				c.Delete("/items/{lineId}", posHandler.RemoveItem)
				c.Post("/discount", posHandler.ApplyDiscount)
				c.Delete("/discount", posHandler.RemoveDiscount)
				c.Post("/promotion", posHandler.ApplyPromotion)
			})

			protected.With(idem.Middleware).Post("/checkout", posHandler.Checkout)

			protected.Route("/shifts", func(s chi.Router) {
				s.Post("/open", shiftHandler.Open)
				s.Post("/close", shiftHandler.Close)
				s.Get("/current", shiftHandler.Current)
				s.Get("/current/summary", shiftHandler.CurrentSummary)
				s.Get("/{id}/summary", shiftHandler.Summary)
			})

			protected.Get("/transactions", txnHandler.List)
			protected.Get("/transactions/{id}", txnHandler.Get)
			protected.Get("/transactions/{id}/receipt", receiptHandler.Get)
			protected.With(idem.Middleware).Post("/transactions/{id}/refund", txnHandler.Refund)

			protected.Get("/reports/sales/daily", reportHandler.DailySales)
			protected.Get("/reports/products/top", reportHandler.TopProducts)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-stopCtx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *db.Postgres
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	return c.db.Health(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
