package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lexpoint/leadforms/cmd/mainconfig"
	"github.com/lexpoint/leadforms/internal/api/router"
	"github.com/lexpoint/leadforms/internal/app/bootstrap"
	appconfig "github.com/lexpoint/leadforms/internal/config"
	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/forms"
	"github.com/lexpoint/leadforms/internal/intake"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/nonblocking"
	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/internal/webhook"
	"github.com/lexpoint/leadforms/pkg/logging"
)

func main() {
	if os.Getenv("ENV") == "" || os.Getenv("ENV") == "development" {
		_ = godotenv.Load()
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadforms API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	go app.deliverer.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	if err := app.runner.Wait(shutdownCtx); err != nil {
		logger.Warn("background tasks did not finish before shutdown", "error", err)
	}
	app.close()

	logger.Info("server stopped")
}

// application is everything main starts and later tears down.
type application struct {
	handler   http.Handler
	deliverer *events.Deliverer
	runner    *nonblocking.Runner
	closers   []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores groups the persistence backends; Postgres when a pool is available,
// in-memory otherwise.
type stores struct {
	leads   leads.Repository
	outbox  events.Outbox
	deduper events.Deduper
}

func setupStores(pool *pgxpool.Pool) stores {
	if pool == nil {
		return stores{
			leads:   leads.NewInMemoryRepository(),
			outbox:  events.NewMemoryOutbox(),
			deduper: events.NewMemoryProcessedStore(),
		}
	}
	return stores{
		leads:   leads.NewPostgresRepository(pool),
		outbox:  events.NewOutboxStore(pool),
		deduper: events.NewProcessedStore(pool),
	}
}

// setupMetrics registers the lead metrics on a private registry and returns
// the /metrics handler serving it.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewLeadMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func setupFormStores(redisClient *redis.Client) (forms.Store, webhook.MappingStore) {
	if redisClient == nil {
		return forms.NewMemoryStore(nil), webhook.NewMemoryMappingStore()
	}
	return forms.NewRedisStore(redisClient, forms.DefaultStoreKey),
		webhook.NewRedisMappingStore(redisClient, webhook.DefaultMappingKey)
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
	} else {
		logger.Warn("DATABASE_URL not set; leads and analytics events are kept in memory")
	}
	st := setupStores(pool)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	formStore, mappingStore := setupFormStores(redisClient)

	var awsCfg aws.Config
	if mainconfig.NeedsAWS(cfg) {
		if awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
			app.close()
			return nil, err
		}
	}

	metricsHandler, leadMetrics := setupMetrics()
	app.runner = nonblocking.NewRunner(logger.Component("tasks"), leadMetrics)

	sink, err := bootstrap.BuildAnalyticsSink(cfg, awsCfg, logger.Component("analytics"))
	if err != nil {
		app.close()
		return nil, err
	}
	app.deliverer = events.NewDeliverer(st.outbox, sink, logger.Component("outbox")).
		WithInterval(cfg.OutboxInterval).
		WithMetrics(leadMetrics)

	notifier := bootstrap.BuildNotifyService(cfg, bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger.Component("notify"))
	registry := forms.NewRegistry(formStore, logger.Component("forms"),
		forms.WithRefreshInterval(cfg.FormsRefreshInterval),
		forms.WithRetryInterval(cfg.FormsRetryInterval),
	)

	webhookOpts := []webhook.Option{
		webhook.WithNotifier(notifier),
		webhook.WithMetrics(leadMetrics),
	}
	if store := bootstrap.BuildArchiveStore(cfg, awsCfg, logger.Component("archive")); store != nil {
		webhookOpts = append(webhookOpts, webhook.WithArchiver(store))
	}
	webhookSvc := webhook.NewService(st.leads, mappingStore, app.runner, logger.Component("webhook"), webhookOpts...)

	intakeSvc := intake.NewService(intake.Config{
		MinFillTime:  cfg.MinFillTime,
		RelayTimeout: cfg.WebhookRelayTimeout,
	}, intake.Deps{
		Forms:    registry,
		Leads:    st.leads,
		Runner:   app.runner,
		Geo:      bootstrap.BuildGeoLocator(cfg, redisClient, logger.Component("geo")),
		Relay:    intake.NewHTTPRelay(&http.Client{Timeout: cfg.WebhookRelayTimeout}),
		Notifier: notifier,
		Metrics:  leadMetrics,
	}, logger.Component("intake"))

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	app.handler = router.New(&router.Config{
		Logger:             logger,
		FormsHandler:       forms.NewHandler(registry, logger),
		IntakeHandler:      intake.NewHandler(intakeSvc, logger),
		WebhookHandler:     webhook.NewHandler(webhookSvc, mappingStore, logger),
		EventsHandler:      events.NewHandler(st.outbox, st.deduper, logger),
		LeadsHandler:       leads.NewHandler(st.leads, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		AdminIssuer:        cfg.AdminJWTIssuer,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return app, nil
}
